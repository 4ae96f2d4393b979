package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/bawabati/bawabati-backend/pkg/logger"
)

type handoffSweepRepo interface {
	ClearExpiredCodes(ctx context.Context, phase enums.HandoffPhase, now time.Time) (int64, error)
}

// HandoffSweepJobParams configure the expired code sweep.
type HandoffSweepJobParams struct {
	Logger     *logger.Logger
	Repository handoffSweepRepo
}

// NewHandoffSweepJob builds the job that blanks expired pickup and delivery
// codes. Expired codes already fail verification; the sweep keeps stale
// secrets from lingering in the orders table.
func NewHandoffSweepJob(params HandoffSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("handoff repository required")
	}
	return &handoffSweepJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type handoffSweepJob struct {
	logg *logger.Logger
	repo handoffSweepRepo
	now  func() time.Time
}

func (j *handoffSweepJob) Name() string { return "handoff-code-sweep" }

func (j *handoffSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs []error
	for _, phase := range []enums.HandoffPhase{enums.HandoffPhasePickup, enums.HandoffPhaseDelivery} {
		if err := j.sweepPhase(ctx, phase, now); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (j *handoffSweepJob) sweepPhase(ctx context.Context, phase enums.HandoffPhase, now time.Time) error {
	cleared, err := j.repo.ClearExpiredCodes(ctx, phase, now)
	if err != nil {
		return fmt.Errorf("%s code sweep: %w", phase, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"phase":          string(phase),
		"orders_cleared": cleared,
	})
	j.logg.Info(logCtx, "handoff code sweep complete")
	return nil
}
