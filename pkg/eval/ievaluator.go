package eval

import (
	"github.com/worldcoin/posthog-ios/core/pkg/model"
	"github.com/worldcoin/posthog-ios/pkg/notify"
)

// IEvaluator answers flag queries from the cached snapshot. None of its
// methods perform network or storage I/O.
type IEvaluator interface {
	IsFeatureEnabled(key string) bool
	GetFeatureFlag(key string) (model.Value, bool)
	GetFeatureFlagPayload(key string) (model.Value, bool)
	GetFeatureFlags() map[string]model.Value
	IsSessionReplayFlagActive() bool
	SessionReplayEndpoint() (string, bool)
	Subscribe(id interface{}) (<-chan notify.Payload, notify.Payload)
	Unsubscribe(id interface{})
}
