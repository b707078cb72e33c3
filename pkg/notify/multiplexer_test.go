package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
)

func TestRegister_ReturnsCurrentSnapshot(t *testing.T) {
	mux := NewMux()
	_, initial := mux.Register("a")
	assert.JSONEq(t, `{"flags": {}, "payloads": {}}`, initial.Flags)

	require.NoError(t, mux.Publish(map[string]model.FlagRecord{
		"bool-value": {Key: "bool-value", Value: model.BoolValue(true)},
	}))

	_, current := mux.Register("b")
	assert.JSONEq(t, `{"flags": {"bool-value": true}, "payloads": {}}`, current.Flags)
	assert.Equal(t, current.Flags, mux.GetAllFlags())
}

func TestPublish_SlowSubscriber_KeepsLatest(t *testing.T) {
	mux := NewMux()
	ch, _ := mux.Register("slow")

	require.NoError(t, mux.Publish(map[string]model.FlagRecord{
		"string-value": {Key: "string-value", Value: model.StringValue("first")},
	}))
	require.NoError(t, mux.Publish(map[string]model.FlagRecord{
		"string-value": {Key: "string-value", Value: model.StringValue("second")},
		"number-value": {Key: "number-value", Payload: model.NumberValue(2)},
	}))

	got := <-ch
	assert.JSONEq(t, `{"flags": {"string-value": "second"}, "payloads": {"number-value": 2}}`, got.Flags)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected payload %s", extra.Flags)
	default:
	}
}

func TestUnregister_ClosesChannel(t *testing.T) {
	mux := NewMux()
	ch, _ := mux.Register("a")
	mux.Unregister("a")

	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, mux.Publish(map[string]model.FlagRecord{}))
	mux.Unregister("a")
}
