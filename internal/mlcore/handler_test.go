package mlcore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	routes := NewHandler(NewModels(source())).Routes()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, req)
	return w
}

func TestHandler_Status(t *testing.T) {
	w := serve(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ML service is online","models":["wait_time_lstm","career_matcher_xgb"]}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(t, http.MethodGet, "/other", "").Code)
}

func TestHandler_WaitTime(t *testing.T) {
	w := serve(t, http.MethodPost, "/predict/wait-time",
		`{"current_length":10,"avg_consult_time":6,"doctors_available":2,"hour_of_day":10}`)
	require.Equal(t, http.StatusOK, w.Code)

	// default draw 0.5 gives +1.5 minutes of noise
	assert.JSONEq(t, `{"estimated_wait_minutes":31.5,"confidence":0.92,"surge_detected":false}`, w.Body.String())
}

func TestHandler_WaitTimeValidation(t *testing.T) {
	w := serve(t, http.MethodPost, "/predict/wait-time", `{"current_length":10,"hour_of_day":10}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Detail []fieldError `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Detail, 2)
	assert.Equal(t, []string{"body", "avg_consult_time"}, body.Detail[0].Loc)
	assert.Equal(t, []string{"body", "doctors_available"}, body.Detail[1].Loc)

	w = serve(t, http.MethodPost, "/predict/wait-time", `{"current_length":"ten"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(t, http.MethodPost, "/predict/wait-time", `not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandler_CareerMatch(t *testing.T) {
	w := serve(t, http.MethodPost, "/predict/career-match",
		`{"aptitude_scores":{"logic":0.9},"interests":["ai"],"skills":["python"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result CareerMatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Matches, 3)

	w = serve(t, http.MethodPost, "/predict/career-match", `{"interests":[],"skills":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "aptitude_scores")
}
