// Package payments — service.go holds payment initiation and the
// reconciliation of gateway callbacks.
package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/common"
	"viralmusic.ke/promo-bot/internal/mpesa"
)

// Ledger is the persistence surface the service needs. *Repository
// implements it; tests substitute a stub.
type Ledger interface {
	RecordPending(ctx context.Context, p *Payment) error
	AttachGatewayRefs(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error
	FindUserByCheckoutID(ctx context.Context, checkoutRequestID string) (int64, bool, error)
	VerifyAndCredit(ctx context.Context, v VerifiedPayment) (bool, error)
	MarkFailed(ctx context.Context, checkoutRequestID string) error
	AggregateStats(ctx context.Context) (*Stats, error)
}

// Gateway initiates push payments. *mpesa.Client implements it.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount int64, accountRef string) (*mpesa.STKPushResponse, error)
}

// Notifier delivers best-effort messages to users and admins. Failures are
// swallowed by the implementation — a dead notification must never roll
// back a credit or fail a callback acknowledgment.
type Notifier interface {
	Notify(recipient int64, text string)
}

// Outcome classifies a reconciled callback.
type Outcome string

const (
	// OutcomeVerified — payment confirmed, shares credited
	OutcomeVerified Outcome = "verified"
	// OutcomeFailed — business decline (nonzero ResultCode), nothing credited
	OutcomeFailed Outcome = "failed"
	// OutcomeDuplicate — callback redelivery, already settled, no-op
	OutcomeDuplicate Outcome = "duplicate"
)

// Service coordinates the gateway client, the payment ledger and the
// account credit.
type Service struct {
	ledger   Ledger
	gateway  Gateway
	notifier Notifier
	adminIDs []int64
}

func NewService(ledger Ledger, gateway Gateway, notifier Notifier, adminIDs []int64) *Service {
	return &Service{
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		adminIDs: adminIDs,
	}
}

// SetNotifier attaches the notifier after construction. The bot both
// consumes the payment handler and delivers its notifications, so one
// of the two has to be bound late.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// ValidatePhone checks the Kenyan mobile format the gateway accepts:
// exactly 12 digits with the 254 country prefix.
func ValidatePhone(phone string) error {
	if len(phone) != 12 || !strings.HasPrefix(phone, "254") {
		return common.ErrInvalidPhone
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return common.ErrInvalidPhone
		}
	}
	return nil
}

// Initiate validates the input, persists the pending record and sends the
// STK push. The pending record is written BEFORE the network call: only
// that ordering preserves the correlation to the buyer if the process
// restarts mid-flight.
func (s *Service) Initiate(ctx context.Context, userID int64, phone string, amount int64) (*mpesa.STKPushResponse, error) {
	if err := ValidatePhone(phone); err != nil {
		return nil, err
	}
	if !CatalogAmount(amount) {
		return nil, common.ErrInvalidAmount
	}

	pkg, _ := ResolvePackage(amount)
	p := &Payment{
		ID:      uuid.NewString(),
		Phone:   phone,
		Amount:  amount,
		Package: pkg,
		UserID:  userID,
	}
	if err := s.ledger.RecordPending(ctx, p); err != nil {
		return nil, err
	}

	// The correlation token is the buyer's user id, carried as the
	// account reference and echoed back by the gateway.
	resp, err := s.gateway.InitiateSTKPush(ctx, phone, amount, strconv.FormatInt(userID, 10))
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"payment_id": p.ID,
			"user_id":    userID,
		}).Error("stk push initiation failed")
		return nil, fmt.Errorf("%w: %v", common.ErrGatewayUnavailable, err)
	}

	if err := s.ledger.AttachGatewayRefs(ctx, p.ID, resp.MerchantRequestID, resp.CheckoutRequestID); err != nil {
		// The push is already on the payer's phone; reconciliation can
		// still correlate through the token fallback.
		log.WithError(err).WithField("payment_id", p.ID).Warn("failed to attach gateway refs")
	}

	log.WithFields(log.Fields{
		"payment_id":  p.ID,
		"user_id":     userID,
		"amount":      amount,
		"package":     pkg,
		"checkout_id": resp.CheckoutRequestID,
	}).Info("stk push initiated")
	return resp, nil
}

// Reconcile is the single entry point for the gateway's asynchronous
// confirmation. Correct for zero, one or many deliveries of the same
// underlying transaction.
func (s *Service) Reconcile(ctx context.Context, env *mpesa.CallbackEnvelope) (Outcome, error) {
	cb := env.Body.StkCallback
	logger := log.WithFields(log.Fields{
		"checkout_id": cb.CheckoutRequestID,
		"merchant_id": cb.MerchantRequestID,
		"result_code": cb.ResultCode,
	})

	// A nonzero result code is a valid terminal outcome of the payment,
	// not an error of this handler.
	if cb.ResultCode != 0 {
		if err := s.ledger.MarkFailed(ctx, cb.CheckoutRequestID); err != nil {
			logger.WithError(err).Error("failed to mark declined payment")
		}
		logger.WithField("result_desc", cb.ResultDesc).Info("payment declined by gateway")
		return OutcomeFailed, nil
	}

	if cb.CallbackMetadata == nil {
		return "", fmt.Errorf("success callback without metadata (checkout_id=%s)", cb.CheckoutRequestID)
	}
	amount, err := cb.CallbackMetadata.Amount()
	if err != nil {
		return "", err
	}
	phone, err := cb.CallbackMetadata.PhoneNumber()
	if err != nil {
		return "", err
	}

	userID, err := s.correlate(ctx, &cb)
	if err != nil {
		return "", err
	}

	pkg, shares := ResolvePackage(amount)
	credited, err := s.ledger.VerifyAndCredit(ctx, VerifiedPayment{
		PaymentID:         uuid.NewString(),
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		UserID:            userID,
		Phone:             phone,
		Amount:            amount,
		Package:           pkg,
		Shares:            shares,
		Receipt:           cb.CallbackMetadata.ReceiptNumber(),
	})
	if err != nil {
		return "", err
	}
	if !credited {
		logger.Info("duplicate callback delivery, already settled")
		return OutcomeDuplicate, nil
	}

	logger.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"package": pkg,
		"shares":  shares,
	}).Info("payment verified, shares credited")

	// Notifications are fire-and-forget: the credit is already committed.
	if s.notifier == nil {
		return OutcomeVerified, nil
	}
	s.notifier.Notify(userID, fmt.Sprintf(
		"✅ Payment of %s confirmed!\nYou now have %s more promotion %s.",
		common.FormatKES(amount), strconv.FormatInt(shares, 10), common.PluralizeShares(shares)))
	for _, adminID := range s.adminIDs {
		s.notifier.Notify(adminID, fmt.Sprintf(
			"💰 New payment!\nUser: %d\nAmount: %s\nPackage: %s",
			userID, common.FormatKES(amount), pkg))
	}

	return OutcomeVerified, nil
}

// correlate maps the anonymous callback back to the buyer: first through
// the pending record keyed by the gateway's checkout reference, then
// through the correlation token echoed in the request-level identifier.
func (s *Service) correlate(ctx context.Context, cb *mpesa.StkCallback) (int64, error) {
	userID, found, err := s.ledger.FindUserByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return 0, err
	}
	if found {
		return userID, nil
	}

	userID, err = strconv.ParseInt(cb.MerchantRequestID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot correlate callback (checkout_id=%s): no pending record and no usable token", cb.CheckoutRequestID)
	}
	return userID, nil
}

// Stats returns the verified payment aggregate for admin reporting.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.ledger.AggregateStats(ctx)
}
