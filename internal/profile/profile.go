package profile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pricewatch/internal/market"
)

// Plan maps interval -> history depth in days for one run mode.
type Plan map[string]int

// Complete covers the full swing view from weekly structure down to 5m.
var Complete = Plan{
	"1w":  52,
	"1d":  90,
	"4h":  30,
	"30m": 7,
	"5m":  3,
}

// Intraday keeps only the session-relevant frames.
var Intraday = Plan{
	"4h":  30,
	"30m": 7,
	"5m":  3,
}

type fileConfig struct {
	Profiles map[string]map[string]int `yaml:"profiles"`
}

// Registry resolves named fetch plans, with optional overrides loaded from
// a YAML file.
type Registry struct {
	plans map[string]Plan
}

func NewRegistry() *Registry {
	return &Registry{plans: map[string]Plan{
		"complete": clonePlan(Complete),
		"intraday": clonePlan(Intraday),
	}}
}

// LoadFile merges profiles from a YAML file over the built-ins. Unknown
// profile names become new plans.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse profile config: %w", err)
	}
	for name, raw := range cfg.Profiles {
		plan := Plan{}
		for interval, days := range raw {
			interval = strings.ToLower(strings.TrimSpace(interval))
			if err := market.ValidateInterval(interval); err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
			if err := market.ValidateDays(days); err != nil {
				return fmt.Errorf("profile %q interval %s: %w", name, interval, err)
			}
			plan[interval] = days
		}
		if len(plan) == 0 {
			return fmt.Errorf("profile %q has no intervals", name)
		}
		r.plans[strings.ToLower(name)] = plan
	}
	return nil
}

// Resolve returns the plan for a mode name.
func (r *Registry) Resolve(name string) (Plan, error) {
	plan, ok := r.plans[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q, available: %s", name, strings.Join(r.Names(), ", "))
	}
	return clonePlan(plan), nil
}

// Names lists the registered profile names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plans))
	for name := range r.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Intervals returns a plan's intervals widest first, the order fetches and
// prompt sections run in.
func (p Plan) Intervals() []string {
	intervals := make([]string, 0, len(p))
	for iv := range p {
		intervals = append(intervals, iv)
	}
	sort.Slice(intervals, func(i, j int) bool {
		di, _ := market.ParseIntervalDuration(intervals[i])
		dj, _ := market.ParseIntervalDuration(intervals[j])
		if di != dj {
			return di > dj
		}
		return intervals[i] < intervals[j]
	})
	return intervals
}

func clonePlan(p Plan) Plan {
	out := make(Plan, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
