package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralmusic.ke/promo-bot/internal/features/payments"
	"viralmusic.ke/promo-bot/internal/mpesa"
)

type stubProcessor struct {
	outcome payments.Outcome
	err     error

	calls int
	last  *mpesa.CallbackEnvelope
}

func (p *stubProcessor) Reconcile(_ context.Context, env *mpesa.CallbackEnvelope) (payments.Outcome, error) {
	p.calls++
	p.last = env
	return p.outcome, p.err
}

const successPayload = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 50.0},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

func TestCallbackVerifiedAnswers200(t *testing.T) {
	proc := &stubProcessor{outcome: payments.OutcomeVerified}
	srv := New(0, proc)

	req := httptest.NewRequest(http.MethodPost, "/mpesa/callback", strings.NewReader(successPayload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"verified"}`, rec.Body.String())
	require.Equal(t, 1, proc.calls)
	assert.Equal(t, "ws_CO_191220191020363925", proc.last.Body.StkCallback.CheckoutRequestID)
}

func TestCallbackDeclineStillAnswers200(t *testing.T) {
	proc := &stubProcessor{outcome: payments.OutcomeFailed}
	srv := New(0, proc)

	payload := `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"c1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mpesa/callback", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"failed"}`, rec.Body.String())
}

func TestCallbackDuplicateAnswers200(t *testing.T) {
	proc := &stubProcessor{outcome: payments.OutcomeDuplicate}
	srv := New(0, proc)

	req := httptest.NewRequest(http.MethodPost, "/mpesa/callback", strings.NewReader(successPayload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())
}

func TestCallbackMalformedPayloadAnswers500(t *testing.T) {
	proc := &stubProcessor{}
	srv := New(0, proc)

	req := httptest.NewRequest(http.MethodPost, "/mpesa/callback", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, proc.calls, "processor must not run on malformed input")
}

func TestCallbackProcessorErrorAnswers500(t *testing.T) {
	proc := &stubProcessor{err: errors.New("db down")}
	srv := New(0, proc)

	req := httptest.NewRequest(http.MethodPost, "/mpesa/callback", strings.NewReader(successPayload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCallbackRejectsNonPOST(t *testing.T) {
	proc := &stubProcessor{}
	srv := New(0, proc)

	req := httptest.NewRequest(http.MethodGet, "/mpesa/callback", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, proc.calls)
}

func TestHealthBanner(t *testing.T) {
	srv := New(0, &stubProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}
