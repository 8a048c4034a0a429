package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "guest123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid username or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(LoginResult{Token: "tok-1", User: domain.User{Username: "guest", Role: domain.RoleGuest}})
	})
	mux.HandleFunc("GET /api/sensor/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "A" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid pipeline ID"})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.SensorReading{PipelineID: "A", Temperature: 42.1})
	}))
	mux.HandleFunc("GET /api/sensor/{id}/history", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("hours"))
		_ = json.NewEncoder(w).Encode(domain.History{PipelineID: r.PathValue("id"), Data: make([]domain.HistoryPoint, 13)})
	}))
	mux.HandleFunc("POST /api/predict", authed(func(w http.ResponseWriter, r *http.Request) {
		var in integrity.PredictionInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		p, err := integrity.Predict(in)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(p)
	}))
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", authed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /api/report", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "txt", r.URL.Query().Get("format"))
		w.Header().Set("Content-Disposition", `attachment; filename="Pipeline_Integrity_Report_2025-03-01.txt"`)
		_, _ = w.Write([]byte("PIPELINE INTEGRITY MONITORING REPORT"))
	}))
	mux.HandleFunc("GET /api/reports", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pipeline") == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "cloud services are disabled"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{"reports": {"reports/A/Pipeline_Integrity_Report_2025-03-01.pdf"}})
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginKeepsToken(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL + "/")
	ctx := context.Background()

	_, err := c.Latest(ctx, "A")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = c.Login(ctx, "guest", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid username or password", apiErr.Message)

	res, err := c.Login(ctx, "guest", "guest123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuest, res.User.Role)
	assert.Equal(t, "tok-1", c.Token())

	r, err := c.Latest(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 42.1, r.Temperature)

	_, err = c.Latest(ctx, "Z")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCalls(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL).WithToken("tok-1")
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	h, err := c.History(ctx, "B", 2)
	require.NoError(t, err)
	assert.Equal(t, "B", h.PipelineID)
	assert.Len(t, h.Data, 13)

	p, err := c.Predict(ctx, integrity.PredictionInput{InitialThickness: 12.7, MinThickness: 8})
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.ThicknessLoss)

	require.NoError(t, c.AcknowledgeAlert(ctx, "a-1"))

	name, body, err := c.Report(ctx, "A", "", "txt")
	require.NoError(t, err)
	assert.Equal(t, "Pipeline_Integrity_Report_2025-03-01.txt", name)
	assert.Equal(t, "PIPELINE INTEGRITY MONITORING REPORT", string(body))

	keys, err := c.Reports(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/A/Pipeline_Integrity_Report_2025-03-01.pdf"}, keys)

	_, err = c.Reports(ctx, "")
	assert.ErrorIs(t, err, domain.ErrCloudDisabled)
}
