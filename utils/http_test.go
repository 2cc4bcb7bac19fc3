package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]int{"rows": 2}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"rows":2}}`, w.Body.String())
}

func TestWriteJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusAccepted, nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter) error
		status  int
		code    string
		message string
	}{
		{
			name:    "bad request",
			write:   func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad plan", nil) },
			status:  http.StatusBadRequest,
			code:    "bad_request",
			message: "bad plan",
		},
		{
			name:    "unauthorized default message",
			write:   func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			status:  http.StatusUnauthorized,
			code:    "unauthorized",
			message: "Authentication required",
		},
		{
			name:    "forbidden default message",
			write:   func(w http.ResponseWriter) error { return WriteForbidden(w, "") },
			status:  http.StatusForbidden,
			code:    "forbidden",
			message: "Access forbidden",
		},
		{
			name:    "not found",
			write:   func(w http.ResponseWriter) error { return WriteNotFound(w, "audit record not found") },
			status:  http.StatusNotFound,
			code:    "not_found",
			message: "audit record not found",
		},
		{
			name:    "internal default message",
			write:   func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			status:  http.StatusInternalServerError,
			code:    "internal_error",
			message: "Internal server error",
		},
		{
			name: "explicit code",
			write: func(w http.ResponseWriter) error {
				return WriteError(w, http.StatusUnprocessableEntity, "no_accessible_columns", "nothing visible", nil)
			},
			status:  http.StatusUnprocessableEntity,
			code:    "no_accessible_columns",
			message: "nothing visible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
			assert.Nil(t, resp.Details)
		})
	}
}

func TestWriteError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteError(w, http.StatusForbidden, "input_rejected", "rejected", map[string]interface{}{"category": "sql-control"}))

	resp := decodeError(t, w)
	assert.Equal(t, "sql-control", resp.Details["category"])
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"message":"hi"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "malformed", body: `{"message":`, wantErr: true},
		{name: "unknown field", body: `{"message":"hi","sql":"DROP TABLE leads"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var b body
			err := DecodeJSON(req, &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hi", b.Message)
		})
	}
}

func TestDecodeJSON_KeepsNumbersExact(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":9007199254740993}`))
	var b struct {
		Value any `json:"value"`
	}
	require.NoError(t, DecodeJSON(req, &b))
	assert.Equal(t, json.Number("9007199254740993"), b.Value)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x", nil)

	n, err := QueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = QueryInt(req, "offset", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = QueryInt(req, "bad", 0)
	assert.EqualError(t, err, "bad must be an integer")
}
