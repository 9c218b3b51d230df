package pkg

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponseBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteResponseBytes(rec, ContentType.Text, []byte("saved 7 days"), http.StatusAccepted)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, ContentType.Text, rec.Header().Get("Content-Type"))
	assert.Equal(t, "saved 7 days", rec.Body.String())
}

func TestWriteJSON(t *testing.T) {
	for _, tc := range []struct {
		name       string
		value      any
		status     int
		wantStatus int
		body       string
	}{
		{
			name:       "object",
			value:      map[string]int{"written": 2},
			status:     http.StatusCreated,
			wantStatus: http.StatusCreated,
			body:       `{"written":2}`,
		},
		{
			name:       "list",
			value:      []string{"2024-06-03", "2024-06-04"},
			status:     http.StatusOK,
			wantStatus: http.StatusOK,
			body:       `["2024-06-03","2024-06-04"]`,
		},
		{
			name:       "unmarshalable value",
			value:      math.Inf(1),
			status:     http.StatusOK,
			wantStatus: http.StatusInternalServerError,
			body:       `{"error":"internal server error"}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteJSON(rec, tc.value, tc.status)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, ContentType.JSON, rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, `route "/nope" not found`, http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"route \"/nope\" not found"}`, rec.Body.String())
}
