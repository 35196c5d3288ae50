package policy

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FeatureConfig holds the per-class ceilings and window for one feature.
// Zero ceilings mean "fall through to the class default"; a zero window
// means "fall through to the installation or fallback window".
type FeatureConfig struct {
	Anonymous int64         `validate:"min=0"`
	Free      int64         `validate:"min=0"`
	Premium   int64         `validate:"min=0"`
	Window    time.Duration `validate:"min=0"`
}

func (fc FeatureConfig) limitFor(class Class) int64 {
	switch class {
	case ClassPremium:
		return fc.Premium
	case ClassFree:
		return fc.Free
	default:
		return fc.Anonymous
	}
}

// Config is the limit policy table for an installation.
// All fields are optional; anything unset resolves through the fallback
// constants, so the zero Config is valid and usable.
type Config struct {
	// Features maps feature names to their ceilings and windows.
	Features map[string]FeatureConfig `validate:"dive"`

	// Installation-wide class defaults, applied to features without an
	// explicit entry. Zero means use the package fallback constant.
	Anonymous int64 `validate:"min=0"`
	Free      int64 `validate:"min=0"`
	Premium   int64 `validate:"min=0"`

	// Window is the installation-wide default window.
	Window time.Duration `validate:"min=0"`
}

// Validate checks the configuration for negative ceilings or windows.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	return nil
}

// Feature names used by the default policy table. Callers are free to use
// arbitrary feature names; these are the ones the creator-suite product ships.
const (
	FeatureAIGeneration      = "ai_generation"
	FeatureContentRepurposer = "content_repurposer"
	FeatureRegistration      = "registration"
	FeatureHashtagSearch     = "hashtag_search"
	FeatureAPIRequest        = "api_request"
)

// DefaultConfig returns the policy table the creator-suite features ship with.
// Registration uses a daily window; everything else is hourly.
func DefaultConfig() Config {
	return Config{
		Features: map[string]FeatureConfig{
			FeatureAIGeneration: {
				Anonymous: 10,
				Free:      50,
				Premium:   500,
			},
			FeatureContentRepurposer: {
				Anonymous: 5,
				Free:      30,
				Premium:   200,
			},
			FeatureRegistration: {
				Anonymous: 3,
				Free:      3,
				Premium:   3,
				Window:    24 * time.Hour,
			},
			FeatureHashtagSearch: {
				Anonymous: 20,
				Free:      100,
				Premium:   1000,
			},
			FeatureAPIRequest: {
				Anonymous: 60,
				Free:      300,
				Premium:   3000,
			},
		},
	}
}
