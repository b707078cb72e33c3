package remote

import (
	"context"
	"errors"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
)

const quotaLimitedFeatureFlags = "feature_flags"

var ErrDecideFailed = errors.New("decide request failed")

type IClient interface {
	Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error)
}

type DecideRequest struct {
	DistinctID  string
	AnonymousID string
	Groups      map[string]string
}

// DecideResponse is the decoded body of a decide call.
type DecideResponse struct {
	FeatureFlags              map[string]interface{} `json:"featureFlags"`
	FeatureFlagPayloads       map[string]interface{} `json:"featureFlagPayloads,omitempty"`
	ErrorsWhileComputingFlags bool                   `json:"errorsWhileComputingFlags"`
	QuotaLimited              []string               `json:"quotaLimited,omitempty"`

	// SessionRecording is false or a {"endpoint", "linkedFlag"} object.
	SessionRecording interface{} `json:"sessionRecording,omitempty"`
}

func (r *DecideResponse) IsQuotaLimited() bool {
	for _, limited := range r.QuotaLimited {
		if limited == quotaLimitedFeatureFlags {
			return true
		}
	}
	return false
}

func (r *DecideResponse) Snapshot() model.Snapshot {
	return model.NewSnapshot(r.FeatureFlags, r.FeatureFlagPayloads, r.ErrorsWhileComputingFlags, r.IsQuotaLimited())
}

// SessionReplay returns the session recording block, if the response enables it.
func (r *DecideResponse) SessionReplay() (map[string]interface{}, bool) {
	dict, ok := r.SessionRecording.(map[string]interface{})
	return dict, ok
}
