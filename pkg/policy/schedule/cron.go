package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fedgrid-hq/triton/pkg/policy"
)

// cronEligible reports whether now falls inside a cron fire window: a
// fire instant occurred within fireWindow before (or exactly at) now,
// interpreted in the schedule's timezone, and the fire instant does not
// exceed the schedule's end date.
func (s *Scheduler) cronEligible(p *policy.Policy, now time.Time) (bool, error) {
	spec := p.Schedule.Cron
	if spec == nil {
		return false, fmt.Errorf("policy %s: cron schedule without parameters", p.ID)
	}

	sched, loc, err := s.crons.get(spec.Expression, spec.Timezone)
	if err != nil {
		return false, fmt.Errorf("policy %s: %w", p.ID, err)
	}

	localNow := now.In(loc)

	// Next is strictly after its argument, so stepping back by the fire
	// window finds the most recent fire inside (now-window, now].
	fire := sched.Next(localNow.Add(-s.fireWindow))
	if fire.After(localNow) {
		return false, nil
	}
	if spec.EndDate != nil && fire.After(*spec.EndDate) {
		return false, nil
	}
	return true, nil
}

// cronCache caches parsed cron schedules keyed by expression and
// timezone. Parsing is cheap but happens on every decision for every
// cron policy, so the cache keeps the hot path allocation-free.
type cronCache struct {
	mu      sync.RWMutex
	entries map[string]cronEntry
}

type cronEntry struct {
	sched cron.Schedule
	loc   *time.Location
}

func newCronCache() *cronCache {
	return &cronCache{entries: make(map[string]cronEntry)}
}

func (c *cronCache) get(expression, timezone string) (cron.Schedule, *time.Location, error) {
	key := expression + "\x00" + timezone
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.sched, entry.loc, nil
	}

	sched, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}

	c.mu.Lock()
	c.entries[key] = cronEntry{sched: sched, loc: loc}
	c.mu.Unlock()
	return sched, loc, nil
}
