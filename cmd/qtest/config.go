package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Qthai16/lab0-queue/utils"
	"github.com/Qthai16/lab0-queue/utils/hashkit"
	"github.com/cockroachdb/errors"
)

const (
	defaultStringLength = 1024
	defaultTimeLimit    = time.Second
	maxStringLength     = 1 << 20
)

// Duration decodes TOML strings such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Config struct {
	FailProbability int      `toml:"fail-probability"` // percent of allocations refused
	StringLength    int      `toml:"string-length"`    // remove buffer size
	TimeLimit       Duration `toml:"time-limit"`       // per command watchdog, 0 disables
	Hash            string   `toml:"hash"`             // snapshot checksum
	Echo            bool     `toml:"echo"`
	Verbose         int      `toml:"verbose"`
	Seed            int64    `toml:"seed"` // 0 picks a random seed
}

func DefaultConfig() *Config {
	return &Config{
		StringLength: defaultStringLength,
		TimeLimit:    Duration{defaultTimeLimit},
		Hash:         "murmur32",
		Echo:         true,
		Verbose:      2,
	}
}

// LoadConfig overlays the TOML file at path on the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	for _, key := range meta.Undecoded() {
		utils.LogWarn("[config] unknown key %q in %s", key.String(), path)
	}
	return cfg, cfg.Adjust()
}

// Adjust validates the config and clamps out of range values.
func (c *Config) Adjust() error {
	if c.FailProbability < 0 || c.FailProbability > 100 {
		return errors.Newf("fail-probability %d out of range 0..100", c.FailProbability)
	}
	if c.StringLength <= 0 {
		c.StringLength = defaultStringLength
	}
	if c.StringLength > maxStringLength {
		return errors.Newf("string-length %d larger than %d", c.StringLength, maxStringLength)
	}
	if c.TimeLimit.Duration < 0 {
		c.TimeLimit.Duration = 0
	}
	if _, err := hashkit.Lookup(c.Hash); err != nil {
		return err
	}
	return nil
}
