package ai

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/talentscout/internal/utils"
	"go.uber.org/zap"
)

// RetryPolicy bounds how transient gateway failures are retried.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max-attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base-delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max-delay" validate:"gte=0"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Retrying repeats rate limited and unavailable calls with exponential backoff.
// Schema mismatches are returned as is; they are the caller's to handle.
type Retrying struct {
	next   Gateway
	policy RetryPolicy
	logger *zap.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

func NewRetrying(next Gateway, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	return &Retrying{
		next:   next,
		policy: policy,
		logger: logger,
		wait:   utils.WaitFor,
	}
}

func (r *Retrying) Invoke(ctx context.Context, req Request) (Payload, error) {
	for attempt := 0; ; attempt++ {
		payload, err := r.next.Invoke(ctx, req)
		if err == nil {
			return payload, nil
		}

		if ctx.Err() != nil {
			return nil, err
		}

		if !Retryable(err) {
			return nil, err
		}

		if attempt+1 >= r.policy.MaxAttempts {
			r.logger.Warn("model call retries exhausted",
				zap.String("template_id", string(req.TemplateID)),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil, err
		}

		delay := utils.Backoff(attempt, r.policy.BaseDelay, r.policy.MaxDelay)

		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
			if r.policy.MaxDelay > 0 && rateErr.RetryAfter > r.policy.MaxDelay {
				r.logger.Warn("model call rate limited beyond retry budget",
					zap.String("template_id", string(req.TemplateID)),
					zap.Duration("retry_after", rateErr.RetryAfter),
					zap.Duration("max_delay", r.policy.MaxDelay),
				)
				return nil, err
			}
			if rateErr.RetryAfter > delay {
				delay = rateErr.RetryAfter
			}
		}

		r.logger.Info("retrying model call",
			zap.String("template_id", string(req.TemplateID)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if waitErr := r.wait(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}
