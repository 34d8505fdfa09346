package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"allthatstax/internal/api"
	"allthatstax/internal/logging"
	"allthatstax/internal/preflight"
	"allthatstax/internal/services"
	"allthatstax/internal/workflow"
)

const (
	defaultStatusTail   = 50
	defaultLogLimit     = 200
	defaultHistoryLimit = 20
	followWait          = 25 * time.Second
	maxOptionsBody      = 64 << 10
)

type apiDeps struct {
	bind    string
	token   string
	manager FetchController
	cards   CardReader
	history HistoryReader
	checks  func(ctx context.Context) []preflight.Result
}

type apiServer struct {
	apiDeps
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(deps apiDeps, logger *slog.Logger) *apiServer {
	srv := &apiServer{apiDeps: deps, logger: logger}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fetch", s.authorize(s.handleFetch))
	mux.HandleFunc("/api/fetch/status", s.authorize(s.handleStatus))
	mux.HandleFunc("/api/fetch/logs", s.authorize(s.handleLogs))
	mux.HandleFunc("/api/fetch/stream", s.authorize(s.handleStream))
	mux.HandleFunc("/api/fetch/cancel", s.authorize(s.handleCancel))
	mux.HandleFunc("/api/cards", s.authorize(s.handleCards))
	mux.HandleFunc("/api/history", s.authorize(s.handleHistory))
	mux.HandleFunc("/api/preflight", s.authorize(s.handlePreflight))
	return withRequestID(mux)
}

// withRequestID tags every request with a correlation id, taken from
// X-Request-ID when the client sent one. Jobs started by the request inherit
// it in their log lines.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	bind := strings.TrimSpace(s.bind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var opts workflow.Options
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOptionsBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid fetch options: "+err.Error())
			return
		}
	}

	logger := logging.WithContext(r.Context(), s.logger)
	state, err := s.manager.Start(r.Context(), opts)
	if err != nil {
		logger.Info("fetch start rejected", logging.Error(err), logging.String(logging.FieldErrorKind, string(services.KindOf(err))))
		s.writeServiceError(w, err)
		return
	}
	logger.Info("fetch started via api", logging.String(logging.FieldJobID, state.JobID))
	s.writeJSON(w, http.StatusAccepted, state)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tail := defaultStatusTail
	if value := strings.TrimSpace(r.URL.Query().Get("tail")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			tail = parsed
		}
	}
	s.writeJSON(w, http.StatusOK, s.manager.Snapshot(tail))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	journal := s.manager.Journal()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, followWait)
		defer cancel()
	}
	entries, next, err := journal.Fetch(ctx, since, limit, follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) && !errors.Is(err, workflow.ErrJournalClosed) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []workflow.LogEntry{}
	}
	if len(entries) == 0 && next < since {
		next = since
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Entries: entries, Next: next})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cancelled := s.manager.Cancel()
	if cancelled {
		s.logger.Info("fetch cancel requested via api",
			logging.String(logging.FieldEventType, "fetch_cancel_requested"))
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *apiServer) handleCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ds, err := s.cards.Load()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDataset(ds, strings.TrimSpace(r.URL.Query().Get("tag"))))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, api.FromHistoryRuns(nil))
		return
	}
	limit := defaultHistoryLimit
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistoryRuns(runs))
}

func (s *apiServer) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var results []preflight.Result
	if s.checks != nil {
		results = s.checks(r.Context())
	}
	s.writeJSON(w, http.StatusOK, api.FromPreflight(results))
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case services.KindBusy:
		status = http.StatusConflict
	case services.KindValidation, services.KindConfiguration, services.KindParse:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
