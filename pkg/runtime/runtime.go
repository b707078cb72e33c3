package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"github.com/worldcoin/posthog-ios/pkg/eval"
	"github.com/worldcoin/posthog-ios/pkg/service"
)

const DefaultReloadSchedule = "@every 5m"

type Identity struct {
	DistinctID  string
	AnonymousID string
	Groups      map[string]string
}

type Runtime struct {
	Evaluator      *eval.FlagEvaluator
	Service        service.IService
	Identity       Identity
	ReloadSchedule string
	Logger         *log.Entry
}

// Start loads flags once, reloads them on ReloadSchedule and serves the
// evaluator until ctx is done. A failed load is logged; the service keeps
// answering from the cached snapshot.
func (r *Runtime) Start(ctx context.Context) error {
	if r.Evaluator == nil || r.Service == nil {
		return errors.New("runtime requires an evaluator and a service")
	}
	logger := r.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	schedule := r.ReloadSchedule
	if schedule == "" {
		schedule = DefaultReloadSchedule
	}

	reload := func() {
		r.Evaluator.LoadFeatureFlags(ctx, r.Identity.DistinctID, r.Identity.AnonymousID, r.Identity.Groups, func(err error) {
			if err != nil {
				logger.Warnf("scheduled reload failed: %v", err)
			}
		})
	}

	c := cron.New()
	if err := c.AddFunc(schedule, reload); err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}

	reload()
	c.Start()
	defer c.Stop()

	return r.Service.Serve(ctx, r.Evaluator)
}
