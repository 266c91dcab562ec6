package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/bookcatalog/httpx"
	"github.com/aluiziolira/bookcatalog/jobs"
)

// trigger answers 202 started or 409 busy; a failed precondition is a 400.
func (s *Server) trigger(kind jobs.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, err := s.jobs.Trigger(kind)
		if err != nil {
			if errors.Is(err, jobs.ErrPrecondition) {
				httpx.JSONError(w, r, http.StatusBadRequest, "PRECONDITION_FAILED", err.Error(), nil)
				return
			}
			s.internalError(w, r, "trigger "+string(kind), err)
			return
		}

		s.logger.Info("job trigger",
			slog.String("job", string(kind)),
			slog.String("outcome", outcome.String()),
			slog.String("subject", httpx.SubjectFrom(r)),
		)
		status := http.StatusAccepted
		if outcome == jobs.Busy {
			status = http.StatusConflict
		}
		httpx.JSON(w, r, status, map[string]string{
			"job":    string(kind),
			"status": outcome.String(),
		}, nil)
	})
}

func (s *Server) status(kind jobs.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := s.jobs.Status(kind)
		if err != nil {
			s.internalError(w, r, "status "+string(kind), err)
			return
		}
		httpx.JSON(w, r, http.StatusOK, st, nil)
	})
}
