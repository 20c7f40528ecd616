package projector

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes

	// JitterPercent spreads retries of trips that failed together. 0 disables it.
	JitterPercent int
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if cfg.JitterPercent < 0 {
		cfg.JitterPercent = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// BackoffDelay returns how long to wait before the nextFailCount-th retry.
func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	var d time.Duration
	switch {
	case nextFailCount <= 1:
		d = p.cfg.Backoff1
	case nextFailCount == 2:
		d = p.cfg.Backoff2
	case nextFailCount == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	if p.cfg.JitterPercent == 0 {
		return d
	}
	span := int(d.Seconds()) * p.cfg.JitterPercent / 100
	if span <= 0 {
		return d
	}
	return d + time.Duration(p.r.Intn(span+1))*time.Second
}

func BackoffDelay(nextFailCount int32) time.Duration {
	return NewPlanner(DefaultPlannerConfig(), nil).BackoffDelay(nextFailCount)
}
