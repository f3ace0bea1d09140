package opstat

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	AllocErrKey    = "alloc"
	CheckErrKey    = "check"
	MismatchErrKey = "mismatch"
	TimeoutErrKey  = "timeout"
	LeakErrKey     = "leak"

	// latency samples kept per command
	maxSamples = 1024
)

type (
	JSONAtomicI64 struct {
		atomic.Int64
	}
	CommandStat struct {
		Command string        `json:"name"`
		Count   JSONAtomicI64 `json:"count"`
		Failed  JSONAtomicI64 `json:"failed"`
		// filled by JSON from the latest samples
		MedianUs float64 `json:"median_us"`
		P99Us    float64 `json:"p99_us"`

		mu      sync.Mutex
		samples []float64
		next    int
	}
	// Stats counts console commands and error classes.
	Stats struct {
		Commands []*CommandStat           `json:"commands"` // sorted by name
		ErrorMap map[string]*JSONAtomicI64 `json:"errors"`
		rwMu     sync.RWMutex
	}
)

func (f *JSONAtomicI64) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%v", f.Load())), nil
}

func New() *Stats {
	return &Stats{
		Commands: make([]*CommandStat, 0),
		ErrorMap: map[string]*JSONAtomicI64{
			AllocErrKey:    {},
			CheckErrKey:    {},
			MismatchErrKey: {},
			TimeoutErrKey:  {},
			LeakErrKey:     {},
		},
	}
}

func (s *Stats) find(cmd string) (int, bool) {
	return slices.BinarySearchFunc(s.Commands, cmd, func(c *CommandStat, target string) int {
		return strings.Compare(c.Command, target)
	})
}

// Add records one run of cmd that took d.
func (s *Stats) Add(cmd string, failed bool, d time.Duration) {
	s.rwMu.RLock()
	if ind, found := s.find(cmd); found {
		s.Commands[ind].inc(failed, d)
		s.rwMu.RUnlock()
		return
	}
	s.rwMu.RUnlock()
	s.rwMu.Lock()
	defer s.rwMu.Unlock()
	ind, found := s.find(cmd)
	if !found {
		s.Commands = slices.Insert(s.Commands, ind, &CommandStat{Command: cmd})
	}
	s.Commands[ind].inc(failed, d)
}

func (c *CommandStat) inc(failed bool, d time.Duration) {
	c.Count.Add(1)
	if failed {
		c.Failed.Add(1)
	}
	us := float64(d) / float64(time.Microsecond)
	c.mu.Lock()
	if len(c.samples) < maxSamples {
		c.samples = append(c.samples, us)
	} else {
		c.samples[c.next] = us
		c.next = (c.next + 1) % maxSamples
	}
	c.mu.Unlock()
}

func (c *CommandStat) summarize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// both fail only on empty input
	c.MedianUs, _ = stats.Median(c.samples)
	c.P99Us, _ = stats.Percentile(c.samples, 99)
}

// Latency returns the median and 99th percentile of the recent runs of cmd.
func (s *Stats) Latency(cmd string) (median, p99 time.Duration) {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	ind, found := s.find(cmd)
	if !found {
		return 0, 0
	}
	c := s.Commands[ind]
	c.summarize()
	return time.Duration(c.MedianUs * float64(time.Microsecond)),
		time.Duration(c.P99Us * float64(time.Microsecond))
}

// IncErr bumps an error class, unknown keys are ignored.
func (s *Stats) IncErr(key string) {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	if v, ok := s.ErrorMap[key]; ok {
		v.Add(1)
	}
}

func (s *Stats) Count(cmd string) int64 {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	if ind, found := s.find(cmd); found {
		return s.Commands[ind].Count.Load()
	}
	return 0
}

func (s *Stats) Err(key string) int64 {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	if v, ok := s.ErrorMap[key]; ok {
		return v.Load()
	}
	return 0
}

// Failed sums the failures of every command.
func (s *Stats) Failed() int64 {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	var n int64
	for _, c := range s.Commands {
		n += c.Failed.Load()
	}
	return n
}

func (s *Stats) JSON() ([]byte, error) {
	s.rwMu.RLock()
	defer s.rwMu.RUnlock()
	for _, c := range s.Commands {
		c.summarize()
	}
	return json.MarshalIndent(s, "", "  ")
}
