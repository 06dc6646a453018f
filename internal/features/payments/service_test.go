package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralmusic.ke/promo-bot/internal/common"
	"viralmusic.ke/promo-bot/internal/mpesa"
)

// stubLedger is an in-memory Ledger that mimics the uniqueness constraint
// on checkout_request_id.
type stubLedger struct {
	pending   map[string]*Payment // by payment id
	byRef     map[string]*Payment // by checkout request id
	settled   map[string]bool     // checkout ids already verified
	credits   map[int64]int64     // user id -> credited shares
	failedIDs []string

	recordErr error
	verifyErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		pending: make(map[string]*Payment),
		byRef:   make(map[string]*Payment),
		settled: make(map[string]bool),
		credits: make(map[int64]int64),
	}
}

func (l *stubLedger) RecordPending(_ context.Context, p *Payment) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	cp := *p
	cp.Status = StatusPending
	l.pending[p.ID] = &cp
	return nil
}

func (l *stubLedger) AttachGatewayRefs(_ context.Context, id, merchantID, checkoutID string) error {
	p, ok := l.pending[id]
	if !ok {
		return fmt.Errorf("no pending payment %s", id)
	}
	p.MerchantRequestID = merchantID
	p.CheckoutRequestID = checkoutID
	l.byRef[checkoutID] = p
	return nil
}

func (l *stubLedger) FindUserByCheckoutID(_ context.Context, checkoutID string) (int64, bool, error) {
	p, ok := l.byRef[checkoutID]
	if !ok {
		return 0, false, nil
	}
	return p.UserID, true, nil
}

func (l *stubLedger) VerifyAndCredit(_ context.Context, v VerifiedPayment) (bool, error) {
	if l.verifyErr != nil {
		return false, l.verifyErr
	}
	if l.settled[v.CheckoutRequestID] {
		return false, nil
	}
	l.settled[v.CheckoutRequestID] = true
	if p, ok := l.byRef[v.CheckoutRequestID]; ok {
		p.Status = StatusVerified
		p.Receipt = v.Receipt
	}
	l.credits[v.UserID] += v.Shares
	return true, nil
}

func (l *stubLedger) MarkFailed(_ context.Context, checkoutID string) error {
	l.failedIDs = append(l.failedIDs, checkoutID)
	if p, ok := l.byRef[checkoutID]; ok && p.Status == StatusPending {
		p.Status = StatusFailed
	}
	return nil
}

func (l *stubLedger) AggregateStats(_ context.Context) (*Stats, error) {
	return &Stats{}, nil
}

// stubGateway records initiation calls.
type stubGateway struct {
	resp     *mpesa.STKPushResponse
	err      error
	calls    int
	lastRef  string
	lastAmnt int64
}

func (g *stubGateway) InitiateSTKPush(_ context.Context, phone string, amount int64, accountRef string) (*mpesa.STKPushResponse, error) {
	g.calls++
	g.lastRef = accountRef
	g.lastAmnt = amount
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

// stubNotifier collects notifications.
type stubNotifier struct {
	sent map[int64][]string
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{sent: make(map[int64][]string)}
}

func (n *stubNotifier) Notify(recipient int64, text string) {
	n.sent[recipient] = append(n.sent[recipient], text)
}

func successCallback(checkoutID, merchantID string, amount int64, phone string) *mpesa.CallbackEnvelope {
	body := fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": %q,
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": %d},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "PhoneNumber", "Value": %s}
					]
				}
			}
		}
	}`, merchantID, checkoutID, amount, phone)
	var env mpesa.CallbackEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		panic(err)
	}
	return &env
}

func declinedCallback(checkoutID string) *mpesa.CallbackEnvelope {
	var env mpesa.CallbackEnvelope
	env.Body.StkCallback = mpesa.StkCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutID,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}
	return &env
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		ok    bool
	}{
		{"254712345678", true},
		{"0712345678", false},  // local format, no country code
		{"25471234567", false}, // 11 chars
		{"2547123456789", false},
		{"254712a45678", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, common.ErrInvalidPhone)
			}
		})
	}
}

func TestInitiateRejectsBadInputBeforeGatewayCall(t *testing.T) {
	gw := &stubGateway{}
	svc := NewService(newStubLedger(), gw, newStubNotifier(), nil)

	_, err := svc.Initiate(context.Background(), 7, "0712345678", 50)
	assert.ErrorIs(t, err, common.ErrInvalidPhone)

	_, err = svc.Initiate(context.Background(), 7, "254712345678", 35)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	assert.Zero(t, gw.calls, "no network call for invalid input")
}

func TestInitiatePersistsPendingBeforePush(t *testing.T) {
	ledger := newStubLedger()
	gw := &stubGateway{resp: &mpesa.STKPushResponse{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	}}
	svc := NewService(ledger, gw, newStubNotifier(), nil)

	resp, err := svc.Initiate(context.Background(), 123456789, "254712345678", 50)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	assert.Equal(t, "123456789", gw.lastRef, "correlation token is the user id")

	require.Len(t, ledger.pending, 1)
	for _, p := range ledger.pending {
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, "PRO", p.Package)
		assert.EqualValues(t, 123456789, p.UserID)
		assert.Equal(t, "ws_CO_1", p.CheckoutRequestID, "gateway refs attached after response")
	}
}

func TestInitiateGatewayFailureReturnsSentinelAndKeepsPending(t *testing.T) {
	ledger := newStubLedger()
	gw := &stubGateway{err: mpesa.ErrPushFailed}
	svc := NewService(ledger, gw, newStubNotifier(), nil)

	_, err := svc.Initiate(context.Background(), 7, "254712345678", 20)
	assert.ErrorIs(t, err, common.ErrGatewayUnavailable)
	// the pending record stays: an abandoned payment is an accepted
	// terminal state, not an error
	assert.Len(t, ledger.pending, 1)
}

func TestReconcileCreditsExactlyOnce(t *testing.T) {
	ledger := newStubLedger()
	notifier := newStubNotifier()
	gw := &stubGateway{resp: &mpesa.STKPushResponse{
		MerchantRequestID: "29115-1",
		CheckoutRequestID: "ws_CO_42",
	}}
	svc := NewService(ledger, gw, notifier, []int64{1000, 1001})

	_, err := svc.Initiate(context.Background(), 555, "254712345678", 50)
	require.NoError(t, err)

	env := successCallback("ws_CO_42", "29115-1", 50, "254712345678")
	outcome, err := svc.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, outcome)
	assert.EqualValues(t, 50, ledger.credits[555], "PRO credits 50 shares")
	assert.Equal(t, StatusVerified, ledger.byRef["ws_CO_42"].Status)
	assert.Equal(t, "NLJ7RT61SV", ledger.byRef["ws_CO_42"].Receipt)

	// redelivery of the identical payload is a no-op success
	outcome, err = svc.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.EqualValues(t, 50, ledger.credits[555], "no double credit")

	// payer notified once, each admin notified once
	assert.Len(t, notifier.sent[555], 1)
	assert.Len(t, notifier.sent[1000], 1)
	assert.Len(t, notifier.sent[1001], 1)
}

func TestReconcilePackageResolution(t *testing.T) {
	tests := []struct {
		amount  int64
		pkg     string
		shares  int64
	}{
		{20, "BASIC", 20},
		{50, "PRO", 50},
		{100, "VIP", 100},
		{77, "Custom", 20}, // unmapped amount still credits the default
	}
	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			ledger := newStubLedger()
			notifier := newStubNotifier()
			svc := NewService(ledger, &stubGateway{}, notifier, nil)

			// no pending record: the correlation token in the
			// merchant request id resolves the buyer
			env := successCallback("ws_CO_x", "777", tt.amount, "254712345678")
			outcome, err := svc.Reconcile(context.Background(), env)
			require.NoError(t, err)
			assert.Equal(t, OutcomeVerified, outcome)
			assert.Equal(t, tt.shares, ledger.credits[777])
			assert.Contains(t, notifier.sent[777][0], "confirmed")
		})
	}
}

func TestReconcileDeclinedPaymentNeverCredits(t *testing.T) {
	ledger := newStubLedger()
	notifier := newStubNotifier()
	svc := NewService(ledger, &stubGateway{}, notifier, []int64{1000})

	outcome, err := svc.Reconcile(context.Background(), declinedCallback("ws_CO_9"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, ledger.credits, "no balance mutated on decline")
	assert.Equal(t, []string{"ws_CO_9"}, ledger.failedIDs)
	assert.Empty(t, notifier.sent, "no notifications on decline")
}

func TestReconcileMalformedMetadata(t *testing.T) {
	svc := NewService(newStubLedger(), &stubGateway{}, newStubNotifier(), nil)

	// success result code but no metadata at all
	var env mpesa.CallbackEnvelope
	env.Body.StkCallback = mpesa.StkCallback{
		MerchantRequestID: "1",
		CheckoutRequestID: "ws_CO_meta",
		ResultCode:        0,
	}
	_, err := svc.Reconcile(context.Background(), &env)
	assert.Error(t, err)

	// metadata present but required item missing
	body := []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_meta2","ResultCode":0,
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":50}]}}}}`)
	var env2 mpesa.CallbackEnvelope
	require.NoError(t, json.Unmarshal(body, &env2))
	_, err = svc.Reconcile(context.Background(), &env2)
	assert.Error(t, err, "missing PhoneNumber item must fail the call")
}

func TestReconcileUncorrelatableCallback(t *testing.T) {
	svc := NewService(newStubLedger(), &stubGateway{}, newStubNotifier(), nil)

	// no pending record and a merchant id that is not a user id token
	env := successCallback("ws_CO_unknown", "29115-34620561-1", 50, "254712345678")
	_, err := svc.Reconcile(context.Background(), env)
	assert.Error(t, err)
}
