package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
	"github.com/worldcoin/posthog-ios/core/pkg/store"
	"github.com/worldcoin/posthog-ios/pkg/notify"
	"github.com/worldcoin/posthog-ios/pkg/remote"
	"github.com/worldcoin/posthog-ios/pkg/storage"
)

var ErrEmptyDistinctID = errors.New("distinct id must not be empty")

// FlagEvaluator owns the in-memory flag snapshot and is the only writer of
// the flag related storage keys.
type FlagEvaluator struct {
	storage storage.IStorage
	client  remote.IClient
	state   *store.State
	mux     *notify.Multiplexer
	logger  *log.Entry

	// serializes applies so memory and storage agree; queries never take it
	applyMu sync.Mutex
}

// NewFlagEvaluator restores the last persisted snapshot from s, so cached
// flags are served before the first load completes.
func NewFlagEvaluator(s storage.IStorage, client remote.IClient, logger *log.Entry) *FlagEvaluator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "evaluator")

	f := &FlagEvaluator{
		storage: s,
		client:  client,
		state:   store.NewFlags(logger),
		mux:     notify.NewMux(),
		logger:  logger,
	}
	f.restore()
	return f
}

func (f *FlagEvaluator) restore() {
	values, _ := f.storage.GetDictionary(storage.EnabledFeatureFlags)
	payloads, _ := f.storage.GetDictionary(storage.EnabledFeatureFlagPayloads)
	replay, replayOK := f.storage.GetDictionary(storage.SessionReplay)
	if len(values) == 0 && len(payloads) == 0 && !replayOK {
		return
	}

	flags := map[string]model.FlagRecord{}
	for key, raw := range values {
		flags[key] = model.FlagRecord{Key: key, Value: model.ValueOf(raw)}
	}
	for key, raw := range payloads {
		record := flags[key]
		record.Key = key
		record.Payload = model.ValueOf(raw)
		flags[key] = record
	}

	if _, err := f.state.Update(flags, store.WithSessionReplay(sessionReplayConfig(replay, replayOK))); err != nil {
		f.logger.Errorf("unable to restore cached flags: %v", err)
		return
	}
	if err := f.mux.Publish(f.state.GetAll()); err != nil {
		f.logger.Errorf("unable to publish cached flags: %v", err)
	}
	f.logger.Debugf("restored %d cached flags", len(flags))
}

func sessionReplayConfig(dict map[string]interface{}, ok bool) *model.SessionReplayConfig {
	if !ok {
		return nil
	}
	cfg := model.ParseSessionReplayConfig(dict)
	return &cfg
}

// LoadFeatureFlags fetches decisions for the given identity in the background
// and applies them. callback, if not nil, is invoked exactly once from the
// background goroutine. Overlapping loads are applied in completion order.
func (f *FlagEvaluator) LoadFeatureFlags(
	ctx context.Context,
	distinctID string,
	anonymousID string,
	groups map[string]string,
	callback func(error),
) {
	req := remote.DecideRequest{
		DistinctID:  distinctID,
		AnonymousID: anonymousID,
		Groups:      make(map[string]string, len(groups)),
	}
	for k, v := range groups {
		req.Groups[k] = v
	}

	go func() {
		err := f.load(ctx, req)
		if callback != nil {
			callback(err)
		}
	}()
}

// LoadFeatureFlagsAsync is LoadFeatureFlags with a completion channel. The
// channel receives exactly one value and is then closed.
func (f *FlagEvaluator) LoadFeatureFlagsAsync(
	ctx context.Context,
	distinctID string,
	anonymousID string,
	groups map[string]string,
) <-chan error {
	done := make(chan error, 1)
	f.LoadFeatureFlags(ctx, distinctID, anonymousID, groups, func(err error) {
		done <- err
		close(done)
	})
	return done
}

func (f *FlagEvaluator) load(ctx context.Context, req remote.DecideRequest) error {
	if req.DistinctID == "" {
		return ErrEmptyDistinctID
	}

	resp, err := f.client.Decide(ctx, req)
	if err != nil {
		f.logger.Errorf("unable to load feature flags: %v", err)
		return err
	}
	if resp == nil {
		f.logger.Error("decide returned no response")
		return fmt.Errorf("%w: empty response", remote.ErrDecideFailed)
	}
	return f.apply(resp)
}

func (f *FlagEvaluator) apply(resp *remote.DecideResponse) error {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()

	snapshot := resp.Snapshot()
	replay, replayOK := resp.SessionReplay()
	withReplay := store.WithSessionReplay(sessionReplayConfig(replay, replayOK))

	var notifications store.Notifications
	var err error
	switch {
	case snapshot.QuotaLimited:
		f.logger.Warn("feature flags are quota limited, clearing cached flags")
		notifications, err = f.state.Clear(withReplay)
	case snapshot.Errored:
		f.logger.Info("server errored while computing flags, merging with cached flags")
		notifications, err = f.state.Merge(snapshot.Flags, withReplay)
	default:
		notifications, err = f.state.Update(snapshot.Flags, withReplay)
	}
	if err != nil {
		return fmt.Errorf("unable to apply feature flags: %w", err)
	}

	current := f.state.GetAll()
	f.logger.Infof("loaded %d feature flags (%d changed)", len(current), len(notifications))

	var errs []error
	if err := f.persist(current); err != nil {
		errs = append(errs, err)
	}
	if err := f.persistSessionReplay(replay, replayOK); err != nil {
		errs = append(errs, err)
	}
	if err := f.mux.Publish(current); err != nil {
		f.logger.Errorf("unable to publish flags: %v", err)
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		f.logger.Errorf("unable to persist feature flags: %v", err)
		return err
	}
	return nil
}

func (f *FlagEvaluator) persist(flags map[string]model.FlagRecord) error {
	snapshot := model.Snapshot{Flags: flags}
	if err := f.storage.SetDictionary(storage.EnabledFeatureFlags, snapshot.Values()); err != nil {
		return err
	}
	return f.storage.SetDictionary(storage.EnabledFeatureFlagPayloads, snapshot.Payloads())
}

func (f *FlagEvaluator) persistSessionReplay(replay map[string]interface{}, ok bool) error {
	if !ok {
		return f.storage.Remove(storage.SessionReplay)
	}
	return f.storage.SetDictionary(storage.SessionReplay, replay)
}

// IsFeatureEnabled reports whether key is in the snapshot with a truthy value.
func (f *FlagEvaluator) IsFeatureEnabled(key string) bool {
	flag, ok := f.state.Get(key)
	return ok && flag.Value.Truthy()
}

// GetFeatureFlag returns the raw value of key: a boolean or a variant name.
func (f *FlagEvaluator) GetFeatureFlag(key string) (model.Value, bool) {
	flag, ok := f.state.Get(key)
	if !ok || flag.Value.IsAbsent() {
		return model.Absent, false
	}
	return flag.Value, true
}

// GetFeatureFlagPayload returns the decoded payload attached to key.
func (f *FlagEvaluator) GetFeatureFlagPayload(key string) (model.Value, bool) {
	flag, ok := f.state.Get(key)
	if !ok || flag.Payload.IsAbsent() {
		return model.Absent, false
	}
	return flag.Payload, true
}

// GetFeatureFlags returns every flag value of the current snapshot.
func (f *FlagEvaluator) GetFeatureFlags() map[string]model.Value {
	flags := f.state.GetAll()
	out := make(map[string]model.Value, len(flags))
	for key, flag := range flags {
		if !flag.Value.IsAbsent() {
			out[key] = flag.Value
		}
	}
	return out
}

// IsSessionReplayFlagActive evaluates the session recording config of the last
// applied response against the flag it links to. A config without a linked
// flag is always active; a linked flag that is missing or cannot be
// interpreted is not.
func (f *FlagEvaluator) IsSessionReplayFlagActive() bool {
	cfg, linked, ok := f.state.SessionReplay()
	if !ok {
		return false
	}
	if cfg.LinkedFlag == nil {
		return true
	}

	switch cfg.LinkedFlag.Kind {
	case model.LinkedFlagBoolean:
		return linked.Value.Truthy()
	case model.LinkedFlagMultivariate:
		variant, ok := linked.Value.Str()
		return ok && variant == cfg.LinkedFlag.RequiredVariant
	default:
		f.logger.Debugf("ignoring unsupported session replay linked flag %q", cfg.LinkedFlag.FlagKey)
		return false
	}
}

// SessionReplayEndpoint returns the snapshot endpoint of the session recording config.
func (f *FlagEvaluator) SessionReplayEndpoint() (string, bool) {
	cfg, _, ok := f.state.SessionReplay()
	if !ok {
		return "", false
	}
	return cfg.Endpoint, cfg.Endpoint != ""
}

// Subscribe registers id for snapshot updates and returns the current one.
func (f *FlagEvaluator) Subscribe(id interface{}) (<-chan notify.Payload, notify.Payload) {
	return f.mux.Register(id)
}

// Unsubscribe closes the channel registered under id.
func (f *FlagEvaluator) Unsubscribe(id interface{}) {
	f.mux.Unregister(id)
}

// Reset drops the in-memory snapshot and everything persisted in storage.
func (f *FlagEvaluator) Reset() error {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()

	if _, err := f.state.Clear(store.WithSessionReplay(nil)); err != nil {
		return fmt.Errorf("unable to clear feature flags: %w", err)
	}
	if err := f.storage.Reset(); err != nil {
		return fmt.Errorf("unable to reset storage: %w", err)
	}
	if err := f.mux.Publish(map[string]model.FlagRecord{}); err != nil {
		f.logger.Errorf("unable to publish flags: %v", err)
	}
	return nil
}
