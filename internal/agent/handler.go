// Package agent provides the HTTP surface of the query agent. It is kept
// separate from cmd/agent so tests can spin up an in-process agent via
// httptest.NewServer.
package agent

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Codename-11/GlassTrax-Bridge/internal/middleware"
	"github.com/Codename-11/GlassTrax-Bridge/internal/query"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	DriverReady       bool   `json:"driver_ready"`
	DatabaseConnected bool   `json:"database_connected"`
	DSN               string `json:"dsn"`
	TestQuery         string `json:"test_query"`
	Message           string `json:"message,omitempty"`
}

// HandlerConfig holds the dependencies of the agent handler.
type HandlerConfig struct {
	Service *query.Service
	Keys    middleware.KeyVerifier
	Version string
	DSN     string
	Logger  *slog.Logger
}

// NewHandler builds the agent's http.Handler. GET /health is open; POST
// /query requires the X-Agent-Key header. A request that reaches the query
// engine always gets a 200 with a QueryResponse body, even when the query
// itself failed — callers must check the success flag.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		connected := cfg.Service.TestConnection(req.Context())

		resp := HealthResponse{
			Status:            "healthy",
			Version:           cfg.Version,
			DriverReady:       true,
			DatabaseConnected: connected,
			DSN:               cfg.DSN,
			TestQuery:         cfg.Service.ProbeQuery(),
		}
		if !connected {
			resp.Status = "unhealthy"
			resp.Message = "Database connection failed"
		}

		writeJSON(w, http.StatusOK, resp)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AgentKeyAuth(cfg.Keys))

		r.Post("/query", func(w http.ResponseWriter, req *http.Request) {
			requestID := middleware.RequestIDFromContext(req.Context())

			var qr query.QueryRequest
			if err := json.NewDecoder(req.Body).Decode(&qr); err != nil {
				writeJSON(w, http.StatusBadRequest, query.FailureResponse("invalid request body"))
				return
			}

			logger.Info("executing query",
				"request_id", requestID, "table", qr.Table)

			resp := cfg.Service.Execute(req.Context(), &qr)

			if resp.Success {
				logger.Info("query completed",
					"request_id", requestID, "table", qr.Table, "row_count", resp.RowCount)
			} else {
				logger.Warn("query failed",
					"request_id", requestID, "table", qr.Table, "error", resp.Error)
			}

			writeJSON(w, http.StatusOK, resp)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
