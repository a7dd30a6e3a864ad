package health_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zigbee-lumi/internal/health"
)

func TestProbePlanNext(t *testing.T) {
	plan := health.ProbePlan{Interval: 15 * time.Minute, Minute: 4, Second: 30}
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, time.UTC) }

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{at(10, 0, 0), at(10, 4, 30)},
		{at(10, 4, 30), at(10, 19, 30)},
		{at(10, 19, 31), at(10, 34, 30)},
		{at(10, 50, 0), at(11, 4, 30)},
		{at(23, 59, 59), time.Date(2024, 3, 2, 0, 4, 30, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plan.Next(tt.now), "now %s", tt.now.Format(time.TimeOnly))
	}
}

func TestNewProbePlanJitterRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		plan, err := health.NewProbePlan(30*time.Minute, spreadRand(i))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, plan.Minute, 0)
		assert.Less(t, plan.Minute, 30)
		assert.GreaterOrEqual(t, plan.Second, 0)
		assert.LessOrEqual(t, plan.Second, 58)
	}
}

func TestNewProbePlanRejects(t *testing.T) {
	for _, d := range []time.Duration{0, 30 * time.Second, 90 * time.Second, 2 * time.Hour} {
		_, err := health.NewProbePlan(d, func(int) int { return 0 })
		assert.Error(t, err, "interval %s", d)
	}
}

// spreadRand returns a deterministic intn spreading over [0, n).
func spreadRand(seed int) func(int) int {
	return func(n int) int { return (seed * 7919) % n }
}
