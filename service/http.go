package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aalemi-dev/eventpipe/publisher"
)

// Handler returns the HTTP surface of the service:
//
//	POST /topics/{topic}/events   publish the JSON Request body, 202 on ack
//	GET  /healthz                 200 when the broker connection is ready, else 503
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /topics/{topic}/events", s.handlePublish)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Service) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: ErrorDetail{
				Kind:    publisher.KindValidation.String(),
				Message: "request body too large",
				Topic:   topic,
			}})
			return
		}
		s.writeError(w, r, publisher.NewValidationError(topic, "could not read request body"))
		return
	}

	resp, err := s.Accept(r.Context(), body, topic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	if !s.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"connection": s.ConnectionState()})
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logWarn(r.Context(), "publish request failed", err, map[string]interface{}{
			"path":   r.URL.Path,
			"status": status,
		})
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeJSON(w, status, ErrorBody{Error: describe(err)})
}

// retryAfter is the Retry-After value, in seconds, sent with 503 responses.
const retryAfter = "1"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
