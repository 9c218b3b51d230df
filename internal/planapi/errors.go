package planapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/planbuilder/internal/breaker"
	"github.com/2beens/planbuilder/internal/clients"
	"github.com/2beens/planbuilder/internal/fsm"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/planner"
	"github.com/2beens/planbuilder/internal/templates"
	"github.com/2beens/planbuilder/pkg"

	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// Field is set for validation failures.
	Field string `json:"field,omitempty"`
	// Failed lists the rows that could not be written.
	Failed []gateway.ItemError `json:"failed,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed with %d: %s", status, err)
	}
	pkg.WriteJSON(w, resp, status)
}

func errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *plan.ValidationError
	var timeoutErr *breaker.TimeoutError
	var writeErr *gateway.WriteError
	var fetchErr *gateway.FetchError

	switch {
	case errors.As(err, &validationErr):
		resp.Field = validationErr.Field
		return http.StatusBadRequest, resp
	case errors.Is(err, clients.ErrClientNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		return http.StatusNotFound, resp
	case errors.Is(err, planner.ErrUnsavedChanges),
		errors.Is(err, planner.ErrCannotApprove),
		errors.Is(err, planner.ErrNotStuck),
		errors.Is(err, fsm.ErrTransitionRejected),
		errors.Is(err, gateway.ErrNoDraftPlan):
		return http.StatusConflict, resp
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	case errors.As(err, &writeErr):
		resp.Failed = writeErr.Items
		return http.StatusBadGateway, resp
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}
