package dispatch

import (
	"fmt"
	"time"

	"github.com/GenuineDickies/pat-sub001/core/score"
)

// Config defines dispatch-related settings.
type Config struct {
	Weights                  score.Weights `json:"weights"`
	MaxRadiusKm              float64       `json:"max_radius_km"`
	LocationFreshnessSeconds int           `json:"location_freshness_seconds"`
	LeaseTimeoutSeconds      int           `json:"lease_timeout_seconds"`
	RequeueOnReclaim         bool          `json:"requeue_on_reclaim"`
	PollIntervalSeconds      int           `json:"poll_interval_seconds"`
	RadiusPrefilter          bool          `json:"radius_prefilter"`
}

// SetDefaults applies production defaults to unset fields.
func (c *Config) SetDefaults() {
	zero := score.Weights{}
	if c.Weights == zero {
		c.Weights = score.DefaultWeights()
	}
	if c.MaxRadiusKm == 0 {
		c.MaxRadiusKm = 50
	}
	if c.LocationFreshnessSeconds == 0 {
		c.LocationFreshnessSeconds = int((15 * time.Minute).Seconds())
	}
	if c.LeaseTimeoutSeconds == 0 {
		c.LeaseTimeoutSeconds = int((5 * time.Minute).Seconds())
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 30
	}
}

// Validate checks the configuration, including the weight distribution.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.MaxRadiusKm <= 0 {
		return fmt.Errorf("dispatch: max_radius_km must be positive")
	}
	if c.LeaseTimeoutSeconds <= 0 {
		return fmt.Errorf("dispatch: lease_timeout_seconds must be positive")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("dispatch: poll_interval_seconds must be positive")
	}
	return nil
}

// Scorer builds the score.Scorer described by the configuration.
func (c Config) Scorer() score.Scorer {
	return score.Scorer{
		Weights:           c.Weights,
		MaxRadiusKm:       c.MaxRadiusKm,
		LocationFreshness: time.Duration(c.LocationFreshnessSeconds) * time.Second,
	}
}

// LeaseTimeout returns the processing lease duration.
func (c Config) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutSeconds) * time.Second
}

// PollInterval returns the worker polling interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
