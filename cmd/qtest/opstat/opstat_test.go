package opstat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	s := New()
	s.Add("it", false, time.Millisecond)
	s.Add("ih", false, time.Millisecond)
	s.Add("it", true, time.Millisecond)
	s.Add("sort", false, time.Millisecond)
	s.IncErr(AllocErrKey)
	s.IncErr("unknown")

	assert.Equal(t, int64(2), s.Count("it"))
	assert.Equal(t, int64(0), s.Count("rh"))
	assert.Equal(t, int64(1), s.Failed())
	assert.Equal(t, int64(1), s.Err(AllocErrKey))
	assert.Equal(t, int64(0), s.Err("unknown"))

	names := make([]string, 0)
	for _, c := range s.Commands {
		names = append(names, c.Command)
	}
	assert.Equal(t, []string{"ih", "it", "sort"}, names)
}

func TestStatsJSON(t *testing.T) {
	s := New()
	s.Add("dm", true, 3*time.Microsecond)
	data, err := s.JSON()
	require.NoError(t, err)

	var out struct {
		Commands []struct {
			Name   string `json:"name"`
			Count  int64  `json:"count"`
			Failed int64   `json:"failed"`
			Median float64 `json:"median_us"`
		} `json:"commands"`
		Errors map[string]int64 `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Commands, 1)
	assert.Equal(t, "dm", out.Commands[0].Name)
	assert.Equal(t, int64(1), out.Commands[0].Failed)
	assert.Equal(t, float64(3), out.Commands[0].Median)
	assert.Contains(t, out.Errors, LeakErrKey)
}

func TestStatsLatency(t *testing.T) {
	s := New()
	for i := 1; i <= 100; i++ {
		s.Add("sort", false, time.Duration(i)*time.Millisecond)
	}
	median, p99 := s.Latency("sort")
	assert.Equal(t, 50500*time.Microsecond, median)
	assert.True(t, p99 >= 98*time.Millisecond && p99 <= 100*time.Millisecond, p99)

	median, p99 = s.Latency("rh")
	assert.Zero(t, median)
	assert.Zero(t, p99)
}

func TestStatsLatencyKeepsRecentSamples(t *testing.T) {
	s := New()
	for i := 0; i < maxSamples; i++ {
		s.Add("it", false, time.Second)
	}
	for i := 0; i < maxSamples; i++ {
		s.Add("it", false, time.Microsecond)
	}
	median, _ := s.Latency("it")
	assert.Equal(t, time.Microsecond, median)
	assert.Equal(t, int64(2*maxSamples), s.Count("it"))
}
