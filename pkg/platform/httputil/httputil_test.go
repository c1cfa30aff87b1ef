package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "incorp/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{
			name:        "invalid status value is described",
			err:         dErrors.New(dErrors.CodeInvalidInput, "unknown request status"),
			status:      http.StatusBadRequest,
			code:        "invalid_input",
			description: "unknown request status",
		},
		{
			name:        "forbidden is described",
			err:         dErrors.New(dErrors.CodeForbidden, "admin role required"),
			status:      http.StatusForbidden,
			code:        "forbidden",
			description: "admin role required",
		},
		{
			name:   "store error hides driver detail",
			err:    dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeStore, "failed to update status"),
			status: http.StatusBadGateway,
			code:   "store_error",
		},
		{
			name:   "internal error omits description",
			err:    dErrors.New(dErrors.CodeInternal, "failed to hash password"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
		{
			name:   "plain error is internal",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
			desc, ok := body["error_description"]
			if tt.description == "" {
				assert.False(t, ok, "description should be omitted")
			} else {
				assert.Equal(t, tt.description, desc)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
