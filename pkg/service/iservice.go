package service

import (
	"context"

	"github.com/worldcoin/posthog-ios/pkg/eval"
)

type IService interface {
	// Serve blocks until ctx is done or the service fails.
	Serve(ctx context.Context, eval eval.IEvaluator) error
}
