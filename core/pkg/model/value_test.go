package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy_Values(t *testing.T) {
	tests := map[string]struct {
		value Value
		want  bool
	}{
		"true":         {BoolValue(true), true},
		"false":        {BoolValue(false), false},
		"variant":      {StringValue("test"), true},
		"empty string": {StringValue(""), false},
		"false string": {StringValue("false"), false},
		"FALSE string": {StringValue("FALSE"), false},
		"number":       {NumberValue(2), true},
		"zero":         {NumberValue(0), false},
		"object":       {ValueOf(map[string]interface{}{"a": 1.0}), true},
		"absent":       {Absent, false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Truthy())
		})
	}
}

func TestValueOf_UnsupportedType_Absent(t *testing.T) {
	assert.True(t, ValueOf(struct{}{}).IsAbsent())
	assert.True(t, ValueOf(nil).IsAbsent())
}

func TestValueOf_Integers_Number(t *testing.T) {
	n, ok := ValueOf(2).Number()
	require.True(t, ok)
	assert.Equal(t, 2.0, n)
}

func TestDecodePayload_JSONEncodedString_Decoded(t *testing.T) {
	n, ok := DecodePayload("2").Number()
	require.True(t, ok)
	assert.Equal(t, 2.0, n)

	obj, ok := DecodePayload(`{"foo": "bar"}`).Object()
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"foo": "bar"}, obj)
}

func TestValueOf_Object_OwnsCopy(t *testing.T) {
	in := map[string]interface{}{"foo": "bar", "nested": []interface{}{"a"}}
	v := ValueOf(in)
	in["foo"] = "changed"
	in["nested"].([]interface{})[0] = "changed"

	obj, ok := v.Object()
	require.True(t, ok)
	obj["foo"] = "mutated"
	obj["injected"] = true

	arr, ok := ValueOf([]interface{}{1.0}).Array()
	require.True(t, ok)
	arr[0] = 2.0

	assert.Equal(t, map[string]interface{}{"foo": "bar", "nested": []interface{}{"a"}}, v.Raw())
}

func TestDecodePayload_PlainString_KeptAsString(t *testing.T) {
	s, ok := DecodePayload("not json").Str()
	require.True(t, ok)
	assert.Equal(t, "not json", s)

	s, ok = DecodePayload("2 3").Str()
	require.True(t, ok)
	assert.Equal(t, "2 3", s)
}

func TestValue_JSON_RoundTrip(t *testing.T) {
	in := map[string]Value{
		"bool":   BoolValue(true),
		"string": StringValue("web"),
		"object": ValueOf(map[string]interface{}{"foo": "bar"}),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool": true, "string": "web", "object": {"foo": "bar"}}`, string(b))

	var out map[string]Value
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	var absent Value
	require.NoError(t, json.Unmarshal([]byte("null"), &absent))
	assert.True(t, absent.IsAbsent())
}

func TestNewSnapshot_QuotaLimited_NoFlags(t *testing.T) {
	s := NewSnapshot(map[string]interface{}{"bool-value": true}, nil, false, true)
	assert.True(t, s.QuotaLimited)
	assert.Empty(t, s.Flags)
}

func TestNewSnapshot_PayloadWithoutValue_Kept(t *testing.T) {
	s := NewSnapshot(
		map[string]interface{}{"bool-value": true, "string-value": "test"},
		map[string]interface{}{"number-value": "2", "string-value": `"hello"`},
		false, false,
	)

	assert.Equal(t, BooleanFlag, s.Flags["bool-value"].Kind())
	assert.Equal(t, ValueFlag, s.Flags["string-value"].Kind())
	assert.True(t, s.Flags["number-value"].Value.IsAbsent())
	assert.Equal(t, NumberValue(2), s.Flags["number-value"].Payload)
	assert.Equal(t, map[string]interface{}{"bool-value": true, "string-value": "test"}, s.Values())
	assert.Equal(t, map[string]interface{}{"number-value": 2.0, "string-value": "hello"}, s.Payloads())
}
