package indexer

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/httputil"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server serves the mirrored registry over the REST API the facade reads.
type Server struct {
	store  *Store
	logger *logging.ColoredLogger
	router chi.Router
	server *http.Server
}

// NewServer builds the router.
func NewServer(store *Store, logger *logging.ColoredLogger) *Server {
	s := &Server{
		store:  store,
		logger: logging.OrNop(logger),
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(httputil.RequestLogger(s.logger, logging.ComponentIndexer))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{caseId}", s.handleGetCase)
		r.Get("/cases/{caseId}/evidence", s.handleListEvidence)
		r.Get("/evidence/{caseId}/{evidenceId}", s.handleGetEvidence)
		r.Put("/evidence/{caseId}/{evidenceId}/admissibility", s.handleSetAdmissibility)
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(logging.NewStandardLogger(s.logger, logging.ComponentIndexer), "", 0),
	}
	s.logger.ComponentInfo(logging.ComponentIndexer, "Index HTTP server starting", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if err := s.store.Ping(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["error"] = err.Error()
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if run, err := s.store.LastSyncRun(r.Context()); err == nil {
		resp["lastSync"] = run
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListCases(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cases)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := httputil.URLParamUint64(r, "caseId")
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("caseId", err.Error(), chi.URLParam(r, "caseId")))
		return
	}
	c, err := s.store.GetCase(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := httputil.URLParamUint64(r, "caseId")
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("caseId", err.Error(), chi.URLParam(r, "caseId")))
		return
	}
	if _, err := s.store.GetCase(r.Context(), caseID); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.store.ListEvidence(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, evidenceID, ok := s.evidenceIDs(w, r)
	if !ok {
		return
	}
	ev, err := s.store.GetEvidence(r.Context(), caseID, evidenceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

type admissibilityRequest struct {
	IsAdmissible *bool `json:"isAdmissible"`
}

func (s *Server) handleSetAdmissibility(w http.ResponseWriter, r *http.Request) {
	caseID, evidenceID, ok := s.evidenceIDs(w, r)
	if !ok {
		return
	}
	var req admissibilityRequest
	if err := httputil.DecodeJSONStrict(r, &req); err != nil {
		s.writeError(w, r, apperrors.NewValidationError("body", "invalid JSON body: "+err.Error(), nil))
		return
	}
	if req.IsAdmissible == nil {
		s.writeError(w, r, apperrors.NewValidationError("isAdmissible", "isAdmissible is required", nil))
		return
	}
	if err := s.store.SetAdmissibility(r.Context(), caseID, evidenceID, *req.IsAdmissible); err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := s.store.GetEvidence(r.Context(), caseID, evidenceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.ComponentInfo(logging.ComponentIndexer, "mirror admissibility updated",
		zap.Uint64("case_id", caseID),
		zap.Uint64("evidence_id", evidenceID),
		zap.Bool("admissible", *req.IsAdmissible))
	httputil.WriteJSON(w, http.StatusOK, ev)
}

func (s *Server) evidenceIDs(w http.ResponseWriter, r *http.Request) (uint64, uint64, bool) {
	caseID, err := httputil.URLParamUint64(r, "caseId")
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("caseId", err.Error(), chi.URLParam(r, "caseId")))
		return 0, 0, false
	}
	evidenceID, err := httputil.URLParamUint64(r, "evidenceId")
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("evidenceId", err.Error(), chi.URLParam(r, "evidenceId")))
		return 0, 0, false
	}
	return caseID, evidenceID, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteHTTPError(w, err, middleware.GetReqID(r.Context()))
}
