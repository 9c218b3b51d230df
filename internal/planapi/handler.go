// Package planapi exposes plan editing sessions and templates over HTTP.
package planapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/planner"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"
	"github.com/2beens/planbuilder/internal/templates"
	"github.com/2beens/planbuilder/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=planapi_test

type plans interface {
	View(ctx context.Context, clientID string) (planner.View, error)
	Navigate(ctx context.Context, clientID string, start plan.Date, mode plan.ViewMode, discard bool) (planner.View, error)
	UpdateDay(ctx context.Context, clientID string, date plan.Date, day plan.Day) (planner.View, error)
	Save(ctx context.Context, clientID string) (*gateway.SaveResult, planner.View, error)
	Approve(ctx context.Context, clientID string, force bool) (*gateway.ApprovalResult, planner.View, error)
	ApproveWeek(ctx context.Context, clientID string, week int, force bool) (*gateway.ApprovalResult, planner.View, error)
	Status(ctx context.Context, clientID string, refresh bool) (approval.Unified, error)
	Retry(ctx context.Context, clientID string) (planner.View, time.Duration, error)
	Reset(ctx context.Context, clientID string) (planner.View, error)
	ExportTemplate(ctx context.Context, clientID string, tags []string) (*templates.Template, error)
	ImportTemplate(ctx context.Context, clientID string, tpl *templates.Template) (planner.View, error)
}

type templateStore interface {
	Save(ctx context.Context, name string, tpl *templates.Template) (*templates.Stored, error)
	Get(ctx context.Context, id string) (*templates.Stored, error)
	Delete(ctx context.Context, id string) error
}

// max accepted request body, templates of a full month included
const maxBodyBytes = 1 << 20

type SaveResponse struct {
	Result *gateway.SaveResult `json:"result"`
	View   planner.View        `json:"view"`
}

type ApproveRequest struct {
	Force bool `json:"force"`
}

type ApproveResponse struct {
	Result *gateway.ApprovalResult `json:"result"`
	View   planner.View            `json:"view"`
}

type RetryResponse struct {
	View planner.View `json:"view"`
	// RetryAfterMs is the suggested wait before repeating the failed action.
	RetryAfterMs int64 `json:"retry_after_ms"`
}

type SaveTemplateRequest struct {
	Name     string              `json:"name"`
	Template *templates.Template `json:"template"`
}

type Handler struct {
	plans     plans
	templates templateStore
}

func NewHandler(plans plans, templateStore templateStore) *Handler {
	return &Handler{
		plans:     plans,
		templates: templateStore,
	}
}

// SetupRoutes registers the plan and template routes on r.
func (h *Handler) SetupRoutes(r *mux.Router) {
	clientPlan := r.PathPrefix("/clients/{clientId}/plan").Subrouter()
	clientPlan.HandleFunc("", h.HandleGetPlan).Methods("GET", "OPTIONS").Name("plan-get")
	clientPlan.HandleFunc("/days/{date}", h.HandleUpdateDay).Methods("PUT", "OPTIONS").Name("plan-update-day")
	clientPlan.HandleFunc("/save", h.HandleSave).Methods("POST", "OPTIONS").Name("plan-save")
	clientPlan.HandleFunc("/approve", h.HandleApprove).Methods("POST", "OPTIONS").Name("plan-approve")
	clientPlan.HandleFunc("/weeks/{week}/approve", h.HandleApproveWeek).Methods("POST", "OPTIONS").Name("plan-approve-week")
	clientPlan.HandleFunc("/status", h.HandleStatus).Methods("GET", "OPTIONS").Name("plan-status")
	clientPlan.HandleFunc("/retry", h.HandleRetry).Methods("POST", "OPTIONS").Name("plan-retry")
	clientPlan.HandleFunc("/reset", h.HandleReset).Methods("POST", "OPTIONS").Name("plan-reset")
	clientPlan.HandleFunc("/export", h.HandleExport).Methods("GET", "OPTIONS").Name("plan-export")
	clientPlan.HandleFunc("/import", h.HandleImport).Methods("POST", "OPTIONS").Name("plan-import")

	tpl := r.PathPrefix("/templates").Subrouter()
	tpl.HandleFunc("", h.HandleSaveTemplate).Methods("POST", "OPTIONS").Name("templates-save")
	tpl.HandleFunc("/{id}", h.HandleGetTemplate).Methods("GET", "OPTIONS").Name("templates-get")
	tpl.HandleFunc("/{id}", h.HandleDeleteTemplate).Methods("DELETE", "OPTIONS").Name("templates-delete")
}

func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.get")
	defer span.End()

	clientID := mux.Vars(r)["clientId"]
	span.SetAttributes(attribute.String("client_id", clientID))
	query := r.URL.Query()

	startParam, viewParam := query.Get("start"), query.Get("view")
	if startParam == "" && viewParam == "" {
		view, err := h.plans.View(ctx, clientID)
		if err != nil {
			writeError(w, err)
			return
		}
		pkg.WriteJSON(w, view, http.StatusOK)
		return
	}

	var start plan.Date
	if startParam != "" {
		parsed, err := plan.ParseDate(startParam)
		if err != nil {
			writeError(w, err)
			return
		}
		start = parsed
	}
	var mode plan.ViewMode
	if viewParam != "" {
		parsed, err := plan.ParseViewMode(viewParam)
		if err != nil {
			writeError(w, err)
			return
		}
		mode = parsed
	}
	discard, _ := strconv.ParseBool(query.Get("discard"))

	view, err := h.plans.Navigate(ctx, clientID, start, mode, discard)
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, view, http.StatusOK)
}

func (h *Handler) HandleUpdateDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.updateDay")
	defer span.End()

	vars := mux.Vars(r)
	clientID := vars["clientId"]
	date, err := plan.ParseDate(vars["date"])
	if err != nil {
		writeError(w, err)
		return
	}

	var day plan.Day
	if err := decodeBody(r, &day); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.plans.UpdateDay(ctx, clientID, date, day)
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, view, http.StatusOK)
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.save")
	defer span.End()

	clientID := mux.Vars(r)["clientId"]
	result, view, err := h.plans.Save(ctx, clientID)
	if err != nil {
		log.Errorf("save plan of %s: %s", clientID, err)
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, SaveResponse{Result: result, View: view}, http.StatusOK)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.approve")
	defer span.End()

	clientID := mux.Vars(r)["clientId"]
	var req ApproveRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, view, err := h.plans.Approve(ctx, clientID, req.Force)
	if err != nil {
		log.Errorf("approve plan of %s: %s", clientID, err)
		writeError(w, err)
		return
	}
	writeApproval(w, result, view)
}

func (h *Handler) HandleApproveWeek(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.approveWeek")
	defer span.End()

	vars := mux.Vars(r)
	clientID := vars["clientId"]
	week, err := strconv.Atoi(vars["week"])
	if err != nil {
		http.Error(w, "error, week NaN", http.StatusBadRequest)
		return
	}

	var req ApproveRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, view, err := h.plans.ApproveWeek(ctx, clientID, week, req.Force)
	if err != nil {
		log.Errorf("approve week %d of %s: %s", week, clientID, err)
		writeError(w, err)
		return
	}
	writeApproval(w, result, view)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.status")
	defer span.End()

	clientID := mux.Vars(r)["clientId"]
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	status, err := h.plans.Status(ctx, clientID, refresh)
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, status, http.StatusOK)
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.retry")
	defer span.End()

	view, wait, err := h.plans.Retry(ctx, mux.Vars(r)["clientId"])
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, RetryResponse{View: view, RetryAfterMs: wait.Milliseconds()}, http.StatusOK)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.reset")
	defer span.End()

	view, err := h.plans.Reset(ctx, mux.Vars(r)["clientId"])
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, view, http.StatusOK)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.export")
	defer span.End()

	tags := r.URL.Query()["tag"]
	tpl, err := h.plans.ExportTemplate(ctx, mux.Vars(r)["clientId"], tags)
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, tpl, http.StatusOK)
}

func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.import")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	tpl, err := templates.Parse(body)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.plans.ImportTemplate(ctx, mux.Vars(r)["clientId"], tpl)
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, view, http.StatusOK)
}

func (h *Handler) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.templates.save")
	defer span.End()

	var req SaveTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Template == nil {
		writeError(w, plan.NewValidationError("template", "missing"))
		return
	}

	stored, err := h.templates.Save(ctx, req.Name, req.Template)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Debugf("template saved: %s [%s]", stored.ID, stored.Name)
	pkg.WriteJSON(w, stored, http.StatusCreated)
}

func (h *Handler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.templates.get")
	defer span.End()

	stored, err := h.templates.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, stored, http.StatusOK)
}

func (h *Handler) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.templates.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if err := h.templates.Delete(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	pkg.WriteJSON(w, map[string]string{"deleted": id}, http.StatusOK)
}

func writeApproval(w http.ResponseWriter, result *gateway.ApprovalResult, view planner.View) {
	status := http.StatusOK
	if result != nil && result.RequiresConfirmation {
		status = http.StatusConflict
	}
	pkg.WriteJSON(w, ApproveResponse{Result: result, View: view}, status)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return plan.NewValidationError("body", err.Error())
	}
	return nil
}

// decodeOptionalBody accepts an empty body as the zero request.
func decodeOptionalBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return plan.NewValidationError("body", err.Error())
}
