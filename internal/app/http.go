package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sigmundftw/educabot/internal/logger"
	"github.com/sigmundftw/educabot/internal/slack"
)

const commandsPrefix = "/slack/commands/"

type HTTPServer struct {
	service *Service
	log     *logger.Logger
	timeout time.Duration
}

func NewHTTPServer(service *Service, log *logger.Logger, timeout time.Duration) *HTTPServer {
	return &HTTPServer{service: service, log: log, timeout: timeout}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, commandsPrefix) {
		s.handleCommand(w, r, strings.TrimPrefix(r.URL.Path, commandsPrefix))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/slack/interactions" {
		s.handleInteraction(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request, name string) {
	if name != "propose" && name != "list" && name != "plan" {
		writeError(w, http.StatusNotFound, "UNKNOWN_COMMAND", "Unknown command", name)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}
	cmd, err := slack.ParseCommand(r.PostForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_COMMAND", err.Error(), nil)
		return
	}

	ctx := r.Context()
	switch name {
	case "propose":
		err = s.service.Propose(ctx, cmd)
	case "plan":
		err = s.service.Plan(ctx, cmd)
	case "list":
		var msg slack.Message
		msg, err = s.service.List(ctx, cmd)
		if err == nil {
			writeJSON(w, http.StatusOK, msg)
			return
		}
	}
	if err != nil {
		// the platform only shows a 200 body to the user
		s.logFailure(r, err)
		writeJSON(w, http.StatusOK, failureMessage())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *HTTPServer) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}
	interaction, err := slack.ParseInteraction(r.PostForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error(), nil)
		return
	}

	fieldErrors, err := s.service.Submit(r.Context(), interaction)
	if err != nil {
		s.logFailure(r, err)
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusOK, slack.SubmissionErrors{Errors: fieldErrors})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *HTTPServer) logFailure(r *http.Request, err error) {
	s.log.Error("request failed",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"error", err.Error(),
	)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setResponseHeaders(writer.Header())
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setResponseHeaders(header http.Header) {
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}
