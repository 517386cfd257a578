package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/stupiduntilnot/kontempo/internal/control"
)

// MaxBodyBytes bounds a request body.
const MaxBodyBytes = 8 << 20

type requestIDKey struct{}

// RequestID returns the request id stored by the handler, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewHandler returns the HTTP surface of the service: POST /chat, POST /test
// and GET /healthz.
func NewHandler(svc *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", svc.handleChat)
	mux.HandleFunc("/test", svc.handleTest)
	mux.HandleFunc("/healthz", svc.handleHealth)
	return withRequestID(mux)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeEnvelope(w, http.StatusMethodNotAllowed, errorEnvelope(fmt.Errorf("method %s not allowed", r.Method)))
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, errorEnvelope(err))
		return
	}
	req, err := DecodeRequest(body)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, errorEnvelope(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	s.answer(w, r, req)
}

func (s *Service) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeEnvelope(w, http.StatusMethodNotAllowed, errorEnvelope(fmt.Errorf("method %s not allowed", r.Method)))
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, errorEnvelope(err))
		return
	}
	tr, err := decodeTestRequest(body)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, errorEnvelope(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	s.answer(w, r, tr.chatRequest())
}

func (s *Service) answer(w http.ResponseWriter, r *http.Request, req Request) {
	requestID := RequestID(r.Context())
	reply, err := s.Reply(r.Context(), requestID, req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, control.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		log.Printf("request failed request_id=%s status=%d: %v", requestID, status, err)
		writeEnvelope(w, status, errorEnvelope(err))
		return
	}
	log.Printf("request done request_id=%s reply_chars=%d", requestID, len([]rune(reply.Text)))
	writeEnvelope(w, http.StatusOK, successEnvelope(reply))
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeEnvelope(w, http.StatusMethodNotAllowed, errorEnvelope(fmt.Errorf("method %s not allowed", r.Method)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"circuit": string(s.CircuitState()),
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
