package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "Invalid input"},
		{name: "not found", code: http.StatusNotFound, message: "Resource not found"},
		{name: "internal server error", code: http.StatusInternalServerError, message: "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			RespondWithError(w, tt.code, tt.message)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.message, response.Error)
			assert.Empty(t, response.Kind)
		})
	}
}

func TestRespondWithErrorKind(t *testing.T) {
	w := httptest.NewRecorder()

	RespondWithErrorKind(w, http.StatusServiceUnavailable, "configuration", "no AI provider configured")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "configuration", response["kind"])
	assert.Equal(t, "no AI provider configured", response["error"])
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()

	payload := map[string]any{"available": []string{"claude", "gemini"}}
	err := RespondWithJSON(w, http.StatusOK, payload)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available":["claude","gemini"]}`, w.Body.String())
}

func TestRespondWithJSON_UnencodablePayload(t *testing.T) {
	w := httptest.NewRecorder()

	err := RespondWithJSON(w, http.StatusOK, map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
