package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://bot.example.com/mpesa/callback",
		BaseURL:        baseURL,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func tokenHandler(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	require.True(t, ok, "token request must carry basic auth")
	assert.Equal(t, "key", user)
	assert.Equal(t, "secret", pass)
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": "test-token",
		"expires_in":   "3599",
	})
}

func TestAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		tokenHandler(t, w, r)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
}

func TestAccessTokenRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenFailed)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "must retry exactly MaxRetries times")
}

func TestInitiateSTKPushBuildsDarajaPayload(t *testing.T) {
	var captured STKPushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			tokenHandler(t, w, r)
			return
		}
		require.Equal(t, "/mpesa/stkpush/v1/processrequest", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(STKPushResponse{
			MerchantRequestID: "29115-34620561-1",
			CheckoutRequestID: "ws_CO_191220191020363925",
			ResponseCode:      "0",
			CustomerMessage:   "Success. Request accepted for processing",
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	resp, err := c.InitiateSTKPush(context.Background(), "254712345678", 50, "123456789")
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	assert.EqualValues(t, 50, captured.Amount)
	// the payer's phone goes in twice, as party and as phone field
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "174379", captured.PartyB)
	assert.Equal(t, "https://bot.example.com/mpesa/callback", captured.CallBackURL)
	assert.Equal(t, "123456789", captured.AccountReference)
	assert.Equal(t, "Viral Music Shares", captured.TransactionDesc)

	// Password = base64(shortcode‖passkey‖timestamp), timestamp YYYYMMDDHHMMSS
	_, err = time.Parse(timestampFormat, captured.Timestamp)
	require.NoError(t, err, "timestamp must be YYYYMMDDHHMMSS")
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + captured.Timestamp))
	assert.Equal(t, wantPassword, captured.Password)
}

func TestInitiateSTKPushAcquiresFreshTokenPerAttempt(t *testing.T) {
	var tokenCalls, pushCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			atomic.AddInt32(&tokenCalls, 1)
			tokenHandler(t, w, r)
			return
		}
		atomic.AddInt32(&pushCalls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.InitiateSTKPush(context.Background(), "254712345678", 20, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.EqualValues(t, 3, atomic.LoadInt32(&pushCalls))
	assert.EqualValues(t, 3, atomic.LoadInt32(&tokenCalls), "tokens are not cached across attempts")
}

func TestInitiateSTKPushTransportFailureReturnsSentinel(t *testing.T) {
	// a server that immediately closes gives connection errors
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.InitiateSTKPush(context.Background(), "254712345678", 100, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestCallbackMetadataLookups(t *testing.T) {
	payload := []byte(`{
		"Item": [
			{"Name": "Amount", "Value": 50.00},
			{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
			{"Name": "TransactionDate", "Value": 20191219102115},
			{"Name": "PhoneNumber", "Value": 254712345678}
		]
	}`)
	var meta CallbackMetadata
	require.NoError(t, json.Unmarshal(payload, &meta))

	amount, err := meta.Amount()
	require.NoError(t, err)
	assert.EqualValues(t, 50, amount)

	phone, err := meta.PhoneNumber()
	require.NoError(t, err)
	assert.Equal(t, "254712345678", phone)

	assert.Equal(t, "NLJ7RT61SV", meta.ReceiptNumber())
}

func TestCallbackMetadataMissingItems(t *testing.T) {
	var meta CallbackMetadata
	require.NoError(t, json.Unmarshal([]byte(`{"Item": [{"Name": "Amount", "Value": "x"}]}`), &meta))

	_, err := meta.Amount()
	assert.Error(t, err, "non-numeric amount must fail the lookup")

	_, err = meta.PhoneNumber()
	assert.Error(t, err, "absent PhoneNumber must fail the lookup")
	assert.Empty(t, meta.ReceiptNumber())
}
