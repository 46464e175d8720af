// Package domain defines the billing-cycle contracts: payment outcomes
// drive the monthly reset of the usage ledger and the suspension lifecycle.
package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// OnPaymentSucceeded opens a fresh billing cycle for the client: the
	// task counter and every per-service quantity are zeroed and a
	// suspended subscription is reactivated. Safe to re-deliver.
	OnPaymentSucceeded(ctx context.Context, clientID string, paidAt time.Time) error
	// OnPaymentFailed suspends the client's subscription. Usage counters
	// are left untouched so recovery resumes mid-cycle state.
	OnPaymentFailed(ctx context.Context, clientID string, failedAt time.Time) error
	// ExpireLapsed expires subscriptions whose reset date lapsed past the
	// grace period without a successful payment. Returns how many expired.
	ExpireLapsed(ctx context.Context) (int, error)
}

var ErrInvalidPaymentTime = errors.New("invalid_payment_time")
