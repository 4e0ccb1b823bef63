package ingest

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Settings are the per-source ingestion knobs stored in the sources table as
// free-form JSON.
type Settings struct {
	// MinScore drops items scoring below the threshold.
	MinScore float64 `mapstructure:"min_score"`
	// MaxItems caps how many items a single fetch may store. Zero means no cap.
	MaxItems int `mapstructure:"max_items"`
	// Tags are applied to every article stored from this source.
	Tags []string `mapstructure:"tags"`
}

// DecodeSettings converts the raw settings map of a source into typed knobs.
// Numeric JSON values arrive as float64 regardless of the intended type, so
// decoding is weakly typed.
func DecodeSettings(raw map[string]any) (Settings, error) {
	var settings Settings
	if len(raw) == 0 {
		return settings, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return settings, err
	}
	if err := decoder.Decode(raw); err != nil {
		return settings, fmt.Errorf("ingest: invalid source settings: %w", err)
	}
	return settings, nil
}
