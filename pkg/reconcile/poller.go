package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal result of a polling run.
type Outcome string

const (
	// OutcomeConfirmed means the backend reported the payment as settled.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeStillPending means the attempt budget ran out while the gateway
	// still reported the payment as processing. The payment may yet settle
	// through the webhook; the caller should show a "verifying" state.
	OutcomeStillPending Outcome = "still_pending"
	// OutcomeFailed means the gateway reported a terminal payment failure.
	OutcomeFailed Outcome = "failed"
	// OutcomeUnverified means the status could not be determined: a transport
	// error, a gateway outage or a cancelled context. Not a payment failure.
	OutcomeUnverified Outcome = "unverified"
)

// CheckResult is one observation from the status endpoint.
type CheckResult struct {
	Settled bool
	Pending bool
	Code    string
	Message string
}

// StatusClient fetches the current reconciled status of a merchant
// transaction. HTTPStatusClient is the production implementation.
type StatusClient interface {
	Check(ctx context.Context, merchantTransactionID string) (*CheckResult, error)
}

// Result summarizes a polling run.
type Result struct {
	Outcome  Outcome
	Attempts int
	Code     string
	Message  string
	Err      error
}

const (
	defaultMaxAttempts = 5
	defaultInterval    = 5 * time.Second
)

// Poller drives a bounded status-check loop after the customer returns from
// the payment page. It is a convenience for clients, not a guarantee: the
// backend settles payments through the webhook regardless of whether anyone
// polls.
type Poller struct {
	client      StatusClient
	logger      *logrus.Logger
	maxAttempts int
	interval    time.Duration
}

// NewPoller creates a poller with the default budget of 5 attempts spaced
// 5 seconds apart.
func NewPoller(client StatusClient, logger *logrus.Logger) *Poller {
	return &Poller{
		client:      client,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		interval:    defaultInterval,
	}
}

// NewPollerWithBudget creates a poller with an explicit attempt budget.
func NewPollerWithBudget(client StatusClient, logger *logrus.Logger, maxAttempts int, interval time.Duration) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		client:      client,
		logger:      logger,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

// Run polls until a terminal answer arrives or the attempt budget is spent.
// The first check fires immediately; subsequent checks wait out the interval.
// A transport or decoding error ends the run at once with OutcomeUnverified:
// retrying a broken connection would only delay the inevitable webhook path.
func (p *Poller) Run(ctx context.Context, merchantTransactionID string) Result {
	if merchantTransactionID == "" {
		return Result{
			Outcome: OutcomeUnverified,
			Message: "no merchant transaction id to poll for",
		}
	}

	var last *CheckResult
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Result{
					Outcome:  OutcomeUnverified,
					Attempts: attempt - 1,
					Message:  "polling cancelled",
					Err:      ctx.Err(),
				}
			case <-time.After(p.interval):
			}
		}

		check, err := p.client.Check(ctx, merchantTransactionID)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"mtid":    merchantTransactionID,
				"attempt": attempt,
			}).WithError(err).Warn("Payment status check failed")
			return Result{
				Outcome:  OutcomeUnverified,
				Attempts: attempt,
				Message:  "payment status could not be verified",
				Err:      err,
			}
		}

		last = check
		if check.Settled {
			return Result{
				Outcome:  OutcomeConfirmed,
				Attempts: attempt,
				Code:     check.Code,
				Message:  check.Message,
			}
		}
		if !check.Pending {
			return Result{
				Outcome:  OutcomeFailed,
				Attempts: attempt,
				Code:     check.Code,
				Message:  check.Message,
			}
		}

		p.logger.WithFields(logrus.Fields{
			"mtid":    merchantTransactionID,
			"attempt": attempt,
		}).Debug("Payment still pending")
	}

	result := Result{
		Outcome:  OutcomeStillPending,
		Attempts: p.maxAttempts,
		Message:  "payment is still processing; it will settle via the gateway callback",
	}
	if last != nil {
		result.Code = last.Code
	}
	return result
}
