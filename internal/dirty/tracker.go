// Package dirty tracks calendar dates holding edits that are not persisted yet.
package dirty

import (
	"sort"
	"sync"

	"github.com/2beens/planbuilder/internal/plan"
)

// Tracker keeps a local set of dirty dates, marked synchronously, and a
// parent set that receives the same marks asynchronously. Every date carries
// the version of its latest mark so a confirmed save only clears dates that
// were not edited again meanwhile.
type Tracker struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	local   map[plan.Date]uint64
	parent  map[plan.Date]uint64
	version uint64
	pending int
}

// Snapshot maps each dirty date to its version at the time of the snapshot.
type Snapshot map[plan.Date]uint64

func NewTracker() *Tracker {
	t := &Tracker{
		local:  make(map[plan.Date]uint64),
		parent: make(map[plan.Date]uint64),
	}
	t.cond = sync.NewCond(&t.mutex)
	return t
}

func (t *Tracker) MarkDirty(dates ...plan.Date) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, d := range dates {
		t.version++
		t.local[d] = t.version
		t.propagate(d, t.version)
	}
}

// propagate copies a local mark to the parent set on another goroutine. The
// copy is dropped if the mark was cleared or superseded by then.
func (t *Tracker) propagate(d plan.Date, version uint64) {
	t.pending++
	go func() {
		t.mutex.Lock()
		defer t.mutex.Unlock()

		if t.local[d] == version && t.parent[d] < version {
			t.parent[d] = version
		}

		t.pending--
		if t.pending == 0 {
			t.cond.Broadcast()
		}
	}()
}

// Sync blocks until every pending propagation has been applied.
func (t *Tracker) Sync() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for t.pending > 0 {
		t.cond.Wait()
	}
}

// Merge adds dates marked by another writer straight into the parent set.
func (t *Tracker) Merge(dates ...plan.Date) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, d := range dates {
		t.version++
		t.parent[d] = t.version
	}
}

func (t *Tracker) IsDirty(d plan.Date) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.isDirty(d)
}

func (t *Tracker) isDirty(d plan.Date) bool {
	if _, ok := t.local[d]; ok {
		return true
	}
	_, ok := t.parent[d]
	return ok
}

// IsWeekDirty reports whether any of the 7 dates of week weekIndex (0 based)
// counted from start is dirty.
func (t *Tracker) IsWeekDirty(weekIndex int, start plan.Date) bool {
	return t.AnyIn(plan.NewRange(start.AddDays(weekIndex*plan.DaysPerWeek), plan.DaysPerWeek))
}

func (t *Tracker) AnyIn(r plan.Range) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, d := range r.Dates() {
		if t.isDirty(d) {
			return true
		}
	}
	return false
}

func (t *Tracker) Empty() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.local) == 0 && len(t.parent) == 0
}

// Dates returns the sorted union of local and parent dates.
func (t *Tracker) Dates() []plan.Date {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	union := make(map[plan.Date]struct{}, len(t.local)+len(t.parent))
	for d := range t.local {
		union[d] = struct{}{}
	}
	for d := range t.parent {
		union[d] = struct{}{}
	}

	dates := make([]plan.Date, 0, len(union))
	for d := range union {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i] < dates[j]
	})
	return dates
}

// Clear empties both sets. Propagations still in flight are dropped.
func (t *Tracker) Clear() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.local = make(map[plan.Date]uint64)
	t.parent = make(map[plan.Date]uint64)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	s := make(Snapshot, len(t.local)+len(t.parent))
	for d, v := range t.parent {
		s[d] = v
	}
	for d, v := range t.local {
		if v > s[d] {
			s[d] = v
		}
	}
	return s
}

// ClearConfirmed removes the confirmed dates unless they were marked again
// after the snapshot was taken. It returns the dates actually cleared.
func (t *Tracker) ClearConfirmed(snapshot Snapshot, confirmed []plan.Date) []plan.Date {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var cleared []plan.Date
	for _, d := range confirmed {
		version, ok := snapshot[d]
		if !ok {
			continue
		}
		if t.local[d] > version || t.parent[d] > version {
			continue
		}
		_, inLocal := t.local[d]
		_, inParent := t.parent[d]
		delete(t.local, d)
		delete(t.parent, d)
		if inLocal || inParent {
			cleared = append(cleared, d)
		}
	}
	return cleared
}
