package model

type FlagKind string

const (
	BooleanFlag FlagKind = "boolean"
	ValueFlag   FlagKind = "value"
)

// FlagRecord is the decision for one flag key, with its optional payload.
type FlagRecord struct {
	Key     string `json:"key"`
	Value   Value  `json:"value"`
	Payload Value  `json:"payload"`
}

func (r FlagRecord) Kind() FlagKind {
	if r.Value.Kind() == KindBool {
		return BooleanFlag
	}
	return ValueFlag
}

// Snapshot is the full set of decisions carried by one decide response.
type Snapshot struct {
	Flags        map[string]FlagRecord `json:"flags"`
	QuotaLimited bool                  `json:"quotaLimited"`
	Errored      bool                  `json:"errored"`
}

// NewSnapshot assembles a snapshot from flag values and payloads keyed by flag.
// A quota limited snapshot never carries flags.
func NewSnapshot(values map[string]interface{}, payloads map[string]interface{}, errored, quotaLimited bool) Snapshot {
	s := Snapshot{
		Flags:        map[string]FlagRecord{},
		QuotaLimited: quotaLimited,
		Errored:      errored,
	}
	if quotaLimited {
		return s
	}

	for key, raw := range values {
		s.Flags[key] = FlagRecord{Key: key, Value: ValueOf(raw)}
	}
	for key, raw := range payloads {
		payload := DecodePayload(raw)
		if payload.IsAbsent() {
			continue
		}
		record := s.Flags[key]
		record.Key = key
		record.Payload = payload
		s.Flags[key] = record
	}
	return s
}

// Values returns the raw flag values keyed by flag, omitting absent ones.
func (s Snapshot) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Flags))
	for key, record := range s.Flags {
		if !record.Value.IsAbsent() {
			out[key] = record.Value.Raw()
		}
	}
	return out
}

// Payloads returns the raw payloads keyed by flag, omitting absent ones.
func (s Snapshot) Payloads() map[string]interface{} {
	out := map[string]interface{}{}
	for key, record := range s.Flags {
		if !record.Payload.IsAbsent() {
			out[key] = record.Payload.Raw()
		}
	}
	return out
}
