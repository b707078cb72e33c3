package model

type LinkedFlagKind int

const (
	// LinkedFlagBoolean gates replay on the flag being enabled.
	LinkedFlagBoolean LinkedFlagKind = iota
	// LinkedFlagMultivariate gates replay on the flag holding a specific variant.
	LinkedFlagMultivariate
	// LinkedFlagInvalid is a link this client cannot interpret. It never activates replay.
	LinkedFlagInvalid
)

type LinkedFlag struct {
	Kind            LinkedFlagKind
	FlagKey         string
	RequiredVariant string
}

// SessionReplayConfig is the session recording block of a decide response.
type SessionReplayConfig struct {
	Endpoint   string
	LinkedFlag *LinkedFlag
}

// ParseSessionReplayConfig reads the persisted session recording dictionary.
// linkedFlag is either a flag key or an object {"flag": key, "variant": name};
// a missing or null linkedFlag means replay is not gated by any flag.
func ParseSessionReplayConfig(dict map[string]interface{}) SessionReplayConfig {
	cfg := SessionReplayConfig{}
	if endpoint, ok := dict["endpoint"].(string); ok {
		cfg.Endpoint = endpoint
	}

	raw, ok := dict["linkedFlag"]
	if !ok || raw == nil {
		return cfg
	}

	switch link := raw.(type) {
	case string:
		cfg.LinkedFlag = &LinkedFlag{Kind: LinkedFlagBoolean, FlagKey: link}
	case map[string]interface{}:
		key, keyOK := link["flag"].(string)
		variant, variantOK := link["variant"].(string)
		if !keyOK || key == "" || !variantOK {
			cfg.LinkedFlag = &LinkedFlag{Kind: LinkedFlagInvalid, FlagKey: key}
			break
		}
		cfg.LinkedFlag = &LinkedFlag{Kind: LinkedFlagMultivariate, FlagKey: key, RequiredVariant: variant}
	default:
		cfg.LinkedFlag = &LinkedFlag{Kind: LinkedFlagInvalid}
	}
	return cfg
}
