package health

import (
	"fmt"
	"time"
)

// ProbePlan fires every Interval at a fixed per-device offset: second
// Second of every minute m with m mod Interval == Minute. Spreading the
// offsets keeps a fleet from pinging in lockstep.
type ProbePlan struct {
	Interval time.Duration
	Minute   int
	Second   int
}

// NewProbePlan draws a random offset. intn must return values in [0, n).
func NewProbePlan(interval time.Duration, intn func(n int) int) (ProbePlan, error) {
	mins := int(interval / time.Minute)
	if interval%time.Minute != 0 || mins < 1 || mins > 60 {
		return ProbePlan{}, fmt.Errorf("health: ping interval %s must be whole minutes between 1m and 60m", interval)
	}
	return ProbePlan{
		Interval: interval,
		Minute:   intn(mins),
		Second:   intn(59),
	}, nil
}

// Next returns the first firing strictly after now.
func (p ProbePlan) Next(now time.Time) time.Time {
	step := int(p.Interval / time.Minute)
	if step < 1 {
		step = 1
	}
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	for h := 0; h < 3; h++ {
		base := hour.Add(time.Duration(h) * time.Hour)
		for m := p.Minute; m < 60; m += step {
			t := base.Add(time.Duration(m)*time.Minute + time.Duration(p.Second)*time.Second)
			if t.After(now) {
				return t
			}
		}
	}
	return now.Add(p.Interval)
}
