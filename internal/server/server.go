// Package server exposes the HTTP surface: the M-Pesa callback endpoint
// and a health banner.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/features/payments"
	"viralmusic.ke/promo-bot/internal/mpesa"
)

// Processor settles a gateway callback. Implemented by the payments
// service; an interface so the handler can be tested against a stub.
type Processor interface {
	Reconcile(ctx context.Context, env *mpesa.CallbackEnvelope) (payments.Outcome, error)
}

// Server wraps the HTTP listener for the callback endpoint.
type Server struct {
	http      *http.Server
	processor Processor
}

func New(port int, processor Processor) *Server {
	s := &Server{processor: processor}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/mpesa/callback", s.handleCallback).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.WithField("addr", s.http.Addr).Info("http server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Viral Music Promo Bot is running")
}

// handleCallback receives the Daraja STK push result. Safaricom retries
// delivery until it gets a 2xx, so every recognized outcome (including a
// business decline and a redelivered duplicate) must answer 200.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var env mpesa.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		log.WithError(err).Warn("malformed callback payload")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "invalid payload"})
		return
	}

	outcome, err := s.processor.Reconcile(r.Context(), &env)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"checkout_request_id": env.Body.StkCallback.CheckoutRequestID,
			"merchant_request_id": env.Body.StkCallback.MerchantRequestID,
		}).Error("callback reconciliation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	log.WithFields(log.Fields{
		"checkout_request_id": env.Body.StkCallback.CheckoutRequestID,
		"outcome":             string(outcome),
	}).Info("callback processed")

	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
