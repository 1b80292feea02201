package group

import "time"

// Config holds the rules and cadence of group encounters.
type Config struct {
	// StageBaseHP is the HP of each stage before the template multiplier.
	StageBaseHP [StageCount]int

	// Start gates.
	RoomCooldown         time.Duration
	InitiatorCooldown    time.Duration
	MinMembership        time.Duration
	EligibilityWindow    time.Duration
	MinGameActions       int
	ActivePlayersWindow  time.Duration
	MinActivePlayers     int
	ActivityWindow       time.Duration
	MinMessagesPerMinute int
	// Debug bypasses every start gate.
	Debug bool

	// Damage.
	MinDistinctRunes int
	DamageCooldown   time.Duration
	ReplyMultiplier  float64
	EmblemMultiplier float64
	Emblems          []string
	// Every participant deals RampMultiplier damage until RampWindow after
	// their first hit.
	RampWindow     time.Duration
	RampMultiplier float64

	// Events and chains.
	EventHPPercent int
	ChainLength    int
	ChainDuration  time.Duration
	ChainHPPercent int

	// Rewards.
	BaseExp           int
	BaseGold          int
	EventBonusPercent int

	// Maintenance.
	SaveInterval         time.Duration
	RegressionInterval   time.Duration
	RegressionFraction   float64
	LowActivityPerMinute int
	ForceCompleteAfter   time.Duration
	ForceCompleteHPFloor int
	ActivityRetention    time.Duration
	MaintenanceWorkers   int
}

// DefaultConfig returns the production rules.
func DefaultConfig() Config {
	return Config{
		StageBaseHP:          [StageCount]int{500, 600, 700, 2000},
		RoomCooldown:         60 * time.Minute,
		InitiatorCooldown:    2 * time.Hour,
		MinMembership:        3 * 24 * time.Hour,
		EligibilityWindow:    7 * 24 * time.Hour,
		MinGameActions:       2,
		ActivePlayersWindow:  24 * time.Hour,
		MinActivePlayers:     3,
		ActivityWindow:       time.Hour,
		MinMessagesPerMinute: 4,
		MinDistinctRunes:     5,
		DamageCooldown:       2 * time.Second,
		ReplyMultiplier:      1.5,
		EmblemMultiplier:     1.2,
		Emblems:              []string{"🔥", "💥", "⚡", "💣"},
		RampWindow:           5 * time.Minute,
		RampMultiplier:       0.7,
		EventHPPercent:       25,
		ChainLength:          3,
		ChainDuration:        60 * time.Second,
		ChainHPPercent:       35,
		BaseExp:              80,
		BaseGold:             200,
		EventBonusPercent:    15,
		SaveInterval:         30 * time.Second,
		RegressionInterval:   90 * time.Second,
		RegressionFraction:   0.012,
		LowActivityPerMinute: 2,
		ForceCompleteAfter:   75 * time.Minute,
		ForceCompleteHPFloor: 5,
		ActivityRetention:    7 * 24 * time.Hour,
		MaintenanceWorkers:   4,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StageBaseHP == ([StageCount]int{}) {
		c.StageBaseHP = d.StageBaseHP
	}
	fillDuration(&c.RoomCooldown, d.RoomCooldown)
	fillDuration(&c.InitiatorCooldown, d.InitiatorCooldown)
	fillDuration(&c.MinMembership, d.MinMembership)
	fillDuration(&c.EligibilityWindow, d.EligibilityWindow)
	fillInt(&c.MinGameActions, d.MinGameActions)
	fillDuration(&c.ActivePlayersWindow, d.ActivePlayersWindow)
	fillInt(&c.MinActivePlayers, d.MinActivePlayers)
	fillDuration(&c.ActivityWindow, d.ActivityWindow)
	fillInt(&c.MinMessagesPerMinute, d.MinMessagesPerMinute)
	fillInt(&c.MinDistinctRunes, d.MinDistinctRunes)
	fillDuration(&c.DamageCooldown, d.DamageCooldown)
	fillFloat(&c.ReplyMultiplier, d.ReplyMultiplier)
	fillFloat(&c.EmblemMultiplier, d.EmblemMultiplier)
	if len(c.Emblems) == 0 {
		c.Emblems = d.Emblems
	}
	fillDuration(&c.RampWindow, d.RampWindow)
	fillFloat(&c.RampMultiplier, d.RampMultiplier)
	fillInt(&c.EventHPPercent, d.EventHPPercent)
	fillInt(&c.ChainLength, d.ChainLength)
	fillDuration(&c.ChainDuration, d.ChainDuration)
	fillInt(&c.ChainHPPercent, d.ChainHPPercent)
	fillInt(&c.BaseExp, d.BaseExp)
	fillInt(&c.BaseGold, d.BaseGold)
	fillInt(&c.EventBonusPercent, d.EventBonusPercent)
	fillDuration(&c.SaveInterval, d.SaveInterval)
	fillDuration(&c.RegressionInterval, d.RegressionInterval)
	fillFloat(&c.RegressionFraction, d.RegressionFraction)
	fillInt(&c.LowActivityPerMinute, d.LowActivityPerMinute)
	fillDuration(&c.ForceCompleteAfter, d.ForceCompleteAfter)
	fillInt(&c.ForceCompleteHPFloor, d.ForceCompleteHPFloor)
	fillDuration(&c.ActivityRetention, d.ActivityRetention)
	fillInt(&c.MaintenanceWorkers, d.MaintenanceWorkers)
	return c
}

func fillDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func fillInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func fillFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

// lowActivityThreshold is the message count below which one regression
// interval counts as inactive.
func (c Config) lowActivityThreshold() int {
	return max(1, int(float64(c.LowActivityPerMinute)*c.RegressionInterval.Seconds()/60))
}
