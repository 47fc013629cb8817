package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/entity"
	"tasksync/internal/metrics"
	"tasksync/internal/session"
)

// Syncer runs a sync on demand. domain.UseCase implements it.
type Syncer interface {
	Sync(ctx context.Context) (entity.ChangeSet, error)
}

type syncResponse struct {
	RequestID string           `json:"request_id"`
	Changes   entity.ChangeSet `json:"changes"`
	Error     string           `json:"error,omitempty"`
}

// NewRouter wires the control endpoints of the daemon.
func NewRouter(syncer Syncer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.Handler().ServeHTTP(w, r)
	})
	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID == "" {
			reqID = uuid.NewString()
		}
		// joined callers share this run, so one client leaving must not cancel it
		changes, err := syncer.Sync(context.WithoutCancel(r.Context()))
		resp := syncResponse{RequestID: reqID, Changes: changes}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status = statusFor(err)
			log.Err(err).Str("request_id", reqID).Msg("sync request failed")
		}
		writeJSON(w, status, resp)
	})
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return http.StatusPreconditionFailed
	case errors.Is(err, session.ErrConnectionFailed), errors.Is(err, session.ErrCalendarProbeFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("can't encode response")
	}
}

// Serve listens on addr until ctx is done, then shuts the server down.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http control listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "error serving http")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down http")
	}
	return nil
}
