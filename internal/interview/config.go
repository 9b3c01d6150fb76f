package interview

import "time"

const (
	DefaultMaxFollowUpsPerTopic = 2
	DefaultIdleTimeout          = 30 * time.Minute
)

// Config captures the interview-behavior settings for one session. It is
// snapshotted at session creation and stored immutably on the Session, so a
// session's behavior is reproducible from its record alone and never depends
// on configuration that changed mid-interview.
type Config struct {
	// AdaptiveQuestioning enables the per-answer follow-up decision. When
	// false every topic takes exactly one round and no decision call is
	// made.
	AdaptiveQuestioning bool `json:"adaptive_questioning" mapstructure:"adaptive-questioning"`

	// MaxFollowUpsPerTopic bounds follow-ups for a single topic.
	MaxFollowUpsPerTopic int `json:"max_follow_ups_per_topic" mapstructure:"max-follow-ups-per-topic"`

	// Difficulty selects the coding-challenge tier.
	Difficulty Difficulty `json:"difficulty" mapstructure:"difficulty"`

	// IdleTimeout is the external retention policy's threshold for expiring
	// an abandoned session. It is recorded here for reproducibility; the
	// core never runs its own timer.
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle-timeout"`
}

// Normalize fills zero values with defaults and clamps out-of-range settings.
func (c Config) Normalize() Config {
	if c.MaxFollowUpsPerTopic < 0 {
		c.MaxFollowUpsPerTopic = 0
	}
	if c.MaxFollowUpsPerTopic == 0 && c.AdaptiveQuestioning {
		c.MaxFollowUpsPerTopic = DefaultMaxFollowUpsPerTopic
	}
	switch c.Difficulty {
	case DifficultyMedium, DifficultyHard:
	default:
		c.Difficulty = DifficultyMedium
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}
