// Package dedup collapses concurrent identical operations into one call.
// While an operation for a key is in flight, every other caller with the
// same key waits for and receives that operation's result.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const keySeparator = "|"

type Group struct {
	sf singleflight.Group

	mutex sync.Mutex
	// slots maps a caller key to the singleflight key of its in-flight call.
	// Forgetting a slot lets the next caller start a fresh call even while
	// the old one is still running.
	slots map[string]string
	seq   uint64

	onDuplicate func(key string)
}

type Option func(*Group)

// WithOnDuplicate registers fn to be called every time a caller joins an
// already pending operation.
func WithOnDuplicate(fn func(key string)) Option {
	return func(g *Group) {
		g.onDuplicate = fn
	}
}

func New(opts ...Option) *Group {
	g := &Group{
		slots: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type callConfig struct {
	timeout     time.Duration
	onDuplicate func()
}

type CallOption func(*callConfig)

// WithTimeout bounds the shared operation: after d the key is released and
// the operation's context is cancelled, whether or not it has returned.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.timeout = d
	}
}

// OnDuplicate is called when this particular call joins a pending one.
func OnDuplicate(fn func()) CallOption {
	return func(c *callConfig) {
		c.onDuplicate = fn
	}
}

// Execute runs op under key, or joins the pending op already running under
// key. The op runs detached from ctx cancellation so one caller giving up
// does not fail the others; a caller whose ctx ends gets ctx.Err().
// A non-nil result returned together with an error is passed through.
// Results are shared between callers and must be treated as read only.
func Execute[T any](
	ctx context.Context,
	g *Group,
	key string,
	op func(ctx context.Context) (T, error),
	opts ...CallOption,
) (T, error) {
	var zero T
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// DoChan is called with mutex held: a slot present under the lock always
	// belongs to an unfinished call, so a joiner never starts a second run.
	g.mutex.Lock()
	sfKey, joined := g.slots[key]
	if !joined {
		g.seq++
		sfKey = key + "#" + strconv.FormatUint(g.seq, 10)
		g.slots[key] = sfKey
	}
	opCtx := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(sfKey, func() (any, error) {
		defer g.release(key, sfKey)

		runCtx, cancel := context.WithCancel(opCtx)
		defer cancel()
		if cfg.timeout > 0 {
			var cancelTimeout context.CancelFunc
			runCtx, cancelTimeout = context.WithTimeout(runCtx, cfg.timeout)
			defer cancelTimeout()

			timer := time.AfterFunc(cfg.timeout, func() {
				g.release(key, sfKey)
			})
			defer timer.Stop()
		}

		return op(runCtx)
	})
	g.mutex.Unlock()

	if joined {
		if g.onDuplicate != nil {
			g.onDuplicate(key)
		}
		if cfg.onDuplicate != nil {
			cfg.onDuplicate()
		}
	}

	select {
	case res := <-ch:
		// a partial result travels along with its error
		if res.Val == nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			if res.Err != nil {
				return zero, res.Err
			}
			return zero, fmt.Errorf("dedup: unexpected result type %T for key [%s]", res.Val, key)
		}
		return v, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Pending reports whether an operation is in flight for key.
func (g *Group) Pending(key string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	_, ok := g.slots[key]
	return ok
}

func (g *Group) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.slots)
}

// Forget releases key so the next call re-executes. Callers already waiting
// on the old operation keep waiting for it.
func (g *Group) Forget(key string) {
	g.mutex.Lock()
	sfKey, ok := g.slots[key]
	delete(g.slots, key)
	g.mutex.Unlock()

	if ok {
		g.sf.Forget(sfKey)
	}
}

// ClearAll drops every pending entry.
func (g *Group) ClearAll() {
	g.mutex.Lock()
	slots := g.slots
	g.slots = make(map[string]string)
	g.mutex.Unlock()

	for _, sfKey := range slots {
		g.sf.Forget(sfKey)
	}
}

func (g *Group) release(key, sfKey string) {
	g.mutex.Lock()
	if g.slots[key] == sfKey {
		delete(g.slots, key)
	}
	g.mutex.Unlock()
	g.sf.Forget(sfKey)
}

// Key builds a deterministic key from the operation name and its
// parameters, sorted by parameter name.
func Key(op string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(op)
	for _, name := range names {
		sb.WriteString(keySeparator)
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprint(params[name]))
	}
	return sb.String()
}

// OpOf returns the operation name a key was built from.
func OpOf(key string) string {
	op, _, _ := strings.Cut(key, keySeparator)
	return op
}
