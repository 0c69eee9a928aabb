package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/dispatcher"
	"github.com/wkc-labs/wkc-server/pkg/registry"
)

const queryLogPrefix = "server:query"

// Features advertised on the root endpoint.
var features = []string{
	"order_processing",
	"ai_chat",
	"document_store",
	"product_management",
	"natural_language_queries",
}

type queryBody struct {
	Query   string         `json:"query"`
	UserID  string         `json:"user_id"`
	Context map[string]any `json:"context"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "WKC server with Gemini AI is running",
		"status":   "healthy",
		"version":  s.cfg.ServiceVersion,
		"features": features,
	})
}

// handleHealth pings the document store and, when configured, checks COMMS.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	checks := map[string]bool{"store": true}
	if err := s.catalog.Ping(ctx); err != nil {
		log.Warn().Err(err).Msgf("%s - store health check failed", queryLogPrefix)
		checks["store"] = false
	}
	if s.commsConnected != nil {
		checks["comms"] = s.commsConnected()
	}

	status, code := "healthy", http.StatusOK
	for _, ok := range checks {
		if !ok {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"version":   s.cfg.ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if !decodeBody(w, r, &body) {
		return
	}
	resp := s.dispatcher.Serve(r.Context(), &dispatcher.QueryRequest{
		ID:      chimw.GetReqID(r.Context()),
		Query:   body.Query,
		UserID:  body.UserID,
		Context: body.Context,
	})
	if !resp.Ok {
		respondError(w, http.StatusBadRequest, resp.Error.Message)
		return
	}

	res := resp.Result
	if res.Success {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"query":           body.Query,
			"function_called": res.FunctionCalled,
			"explanation":     res.Explanation,
			"result":          res.Result,
			"parameters_used": res.Parameters,
		})
		return
	}
	out := map[string]any{
		"success":             false,
		"query":               body.Query,
		"function_called":     res.FunctionCalled,
		"error":               res.Error,
		"error_code":          res.ErrorCode,
		"explanation":         res.Explanation,
		"available_functions": res.AvailableFunctions,
	}
	if res.AvailableFunctions == nil {
		out["available_functions"] = []string{}
	}
	if res.RawResponse != "" {
		out["raw_response"] = res.RawResponse
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	ops := s.registry.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"operations": ops,
		"count":      len(ops),
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, buildOpenAPISpec(s.registry.List(), s.cfg.ServiceVersion))
}

// handleInvokeOperation runs one operation by name with a JSON parameter
// object, bypassing the model.
func (s *Server) handleInvokeOperation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	desc, ok := s.registry.Lookup(name)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown operation: "+name)
		return
	}
	params := map[string]any{}
	if r.ContentLength != 0 && !decodeBody(w, r, &params) {
		return
	}

	res, err := s.registry.Invoke(r.Context(), desc.Kind, params)
	if err != nil {
		var perr *registry.ParamError
		if errors.As(err, &perr) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msgf("%s - %s failed", queryLogPrefix, name)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}
