package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hades-kb/hades/internal/testutil"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"name": "hades"}, testutil.DiscardLogger())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Length"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hades", body["name"])
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	// Channels are not JSON-encodable; the failure must surface as a 500
	// before any headers commit a 2xx.
	WriteJSON(rec, http.StatusOK, map[string]any{"ch": make(chan int)}, testutil.DiscardLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "not_found", "collection not found", testutil.DiscardLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Code)
	assert.Equal(t, "collection not found", body.Error.Message)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":true}`))
	rec := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	err := decodeJSON(rec, req, &dst)
	assert.Error(t, err)
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", maxRequestBody+1) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	rec := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	err := decodeJSON(rec, req, &dst)
	assert.Error(t, err)
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=abc", nil)

	assert.Equal(t, 25, parseIntParam(req, "limit", 5))
	assert.Equal(t, 5, parseIntParam(req, "bad", 5))
	assert.Equal(t, 5, parseIntParam(req, "missing", 5))
}
