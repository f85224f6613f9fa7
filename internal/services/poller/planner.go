package poller

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

// Window is a half-open time range [From, To) of scheduled tasks to fetch.
type Window struct {
	From time.Time
	To   time.Time
}

type PlannerConfig struct {
	// Location задаёт границы рабочего дня. default: UTC
	Location *time.Location

	LookbackDays int // default: 2, окна backfill не включая сегодня

	Backoff1 time.Duration // default: 5s
	Backoff2 time.Duration // default: 15s
	Backoff3 time.Duration // default: 30s
	Backoff4 time.Duration // default: 60s

	MaxJitter time.Duration // default: 0
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Location:     time.UTC,
		LookbackDays: 2,

		Backoff1: 5 * time.Second,
		Backoff2: 15 * time.Second,
		Backoff3: 30 * time.Second,
		Backoff4: 60 * time.Second,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
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
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) dayStart(now time.Time) time.Time {
	t := now.In(p.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.cfg.Location)
}

// Today returns the window of the current working day.
func (p *Planner) Today(now time.Time) Window {
	start := p.dayStart(now)
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

// Backfill returns one window per look-back day, oldest first, ending with today.
func (p *Planner) Backfill(now time.Time) []Window {
	today := p.dayStart(now)
	out := make([]Window, 0, p.cfg.LookbackDays+1)
	for i := p.cfg.LookbackDays; i >= 0; i-- {
		from := today.AddDate(0, 0, -i)
		out = append(out, Window{From: from, To: from.AddDate(0, 0, 1)})
	}
	return out
}

// BackoffDelay is the pause after the n-th consecutive failed cycle.
func (p *Planner) BackoffDelay(failCount int32) time.Duration {
	var d time.Duration
	switch {
	case failCount <= 1:
		d = p.cfg.Backoff1
	case failCount == 2:
		d = p.cfg.Backoff2
	case failCount == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	if p.cfg.MaxJitter > 0 {
		d += time.Duration(p.r.Intn(int(p.cfg.MaxJitter/time.Millisecond)+1)) * time.Millisecond
	}
	return d
}
