package dispatch

// Config defines dispatch-related settings. The score weights are tunable
// configuration, not hard contract: lower score wins.
type Config struct {
	// DistanceWeight scores estimated travel distance, per kilometer.
	DistanceWeight float64 `json:"distance_weight"`
	// WorkloadWeight scores the technician's queued work orders, per order.
	WorkloadWeight float64 `json:"workload_weight"`
	// SkillBonusWeight credits preferred-skill matches, per matched skill.
	SkillBonusWeight float64 `json:"skill_bonus_weight"`
	// AckTimeoutSeconds bounds the wait for a technician acknowledgment.
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
	// MaxAttempts caps dispatch attempts per work order before it is
	// surfaced for manual intervention.
	MaxAttempts int `json:"max_attempts"`
	// ConflictBackoffMS is the pause before the single automatic retry
	// after losing a technician lock race.
	ConflictBackoffMS int `json:"conflict_backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DistanceWeight == 0 {
		c.DistanceWeight = 1.0
	}
	if c.WorkloadWeight == 0 {
		c.WorkloadWeight = 0.5
	}
	if c.SkillBonusWeight == 0 {
		c.SkillBonusWeight = 0.25
	}
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 30
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.ConflictBackoffMS <= 0 {
		c.ConflictBackoffMS = 50
	}
}
