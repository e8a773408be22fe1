package lib

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config carries the engine knobs. Zero values select defaults, so a
// partial config file works.
type Config struct {
	ScanWorkers    int      `yaml:"scan_workers"`
	CompareWorkers int      `yaml:"compare_workers"`
	CompareMode    string   `yaml:"compare_mode"`
	ChunkSize      int      `yaml:"chunk_size"`
	HashThreshold  int      `yaml:"hash_threshold"`
	DirBatchSize   int      `yaml:"dir_batch_size"`
	PollIntervalMS int      `yaml:"poll_interval_ms"`
	JoinTimeoutMS  int      `yaml:"join_timeout_ms"`
	Exclude        []string `yaml:"exclude"`

	excludes *excludeSet
}

// DefaultConfig is the engine's stock tuning.
func DefaultConfig() Config {
	return Config{
		ScanWorkers:    1,
		CompareWorkers: 1,
		CompareMode:    CompareBytes,
		ChunkSize:      defaultCompareChunk,
		HashThreshold:  10 * 1024 * 1024,
		DirBatchSize:   defaultDirBatchSize,
		PollIntervalMS: 200,
		JoinTimeoutMS:  1000,
	}
}

// LoadConfig reads a YAML config; a missing file yields the defaults.
// Present keys override defaults, absent keys keep them.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) joinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMS) * time.Millisecond
}

// withDefaults fills zero fields, validates the mode, and compiles exclude
// patterns so bad ones are reported once up front rather than per scan.
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = def.ScanWorkers
	}
	if c.CompareWorkers <= 0 {
		c.CompareWorkers = def.CompareWorkers
	}
	if c.CompareMode == "" {
		c.CompareMode = def.CompareMode
	}
	switch c.CompareMode {
	case CompareBytes, CompareXXHash:
	default:
		return c, fmt.Errorf("unknown compare mode: %s", c.CompareMode)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.HashThreshold <= 0 {
		c.HashThreshold = def.HashThreshold
	}
	if c.DirBatchSize <= 0 {
		c.DirBatchSize = def.DirBatchSize
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = def.PollIntervalMS
	}
	if c.JoinTimeoutMS <= 0 {
		c.JoinTimeoutMS = def.JoinTimeoutMS
	}
	ex, err := CompileExcludes(c.Exclude)
	if err != nil {
		return c, err
	}
	c.excludes = ex
	return c, nil
}

type compiledExclude struct {
	glob     glob.Glob
	pathWide bool
}

// excludeSet filters scanner listings. A nil set matches nothing.
type excludeSet struct {
	globs []compiledExclude
}

// CompileExcludes turns glob patterns into a matcher. Patterns without a
// slash match base names; patterns with one match the whole relative path.
// A trailing slash (directory spelling) is accepted and trimmed.
func CompileExcludes(patterns []string) (*excludeSet, error) {
	var set excludeSet
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		set.globs = append(set.globs, compiledExclude{glob: g, pathWide: strings.Contains(p, "/")})
	}
	if len(set.globs) == 0 {
		return nil, nil
	}
	return &set, nil
}

// Match reports whether one child should be skipped.
func (e *excludeSet) Match(name, rel string) bool {
	if e == nil {
		return false
	}
	for _, g := range e.globs {
		if g.pathWide {
			if g.glob.Match(rel) {
				return true
			}
		} else if g.glob.Match(name) {
			return true
		}
	}
	return false
}
