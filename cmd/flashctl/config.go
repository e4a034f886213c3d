package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	redisstore "github.com/xraph/flashledger/store/redis"
)

// plan.toml key mapping.
type fileConfig struct {
	Store            string        `toml:"store"`
	RedisAddr        string        `toml:"redis_addr"`
	RedisPrefix      string        `toml:"redis_prefix"`
	MaxTouchedAssets int           `toml:"max_touched_assets"`
	LogLevel         string        `toml:"log_level"`
	Fund             []fundEntry   `toml:"fund"`
	Sessions         []sessionPlan `toml:"session"`
}

// fundEntry credits an external account before any session runs.
type fundEntry struct {
	Owner  string `toml:"owner"`
	Asset  string `toml:"asset"`
	Amount int64  `toml:"amount"`
}

type sessionPlan struct {
	Caller     string `toml:"caller"`
	ExpectFail bool   `toml:"expect_fail"`
	Steps      []step `toml:"step"`
}

// step is one primitive. Owner defaults to the session caller.
type step struct {
	Op     string `toml:"op"`
	Owner  string `toml:"owner"`
	To     string `toml:"to"`
	Asset  string `toml:"asset"`
	Out    string `toml:"out"`
	Amount int64  `toml:"amount"`
	Num    int64  `toml:"num"`
	Den    int64  `toml:"den"`
}

// Plan is a validated plan file with defaults applied.
type Plan struct {
	Store            string
	RedisAddr        string
	RedisPrefix      string
	MaxTouchedAssets int
	LogLevel         slog.Level
	Fund             []fundEntry
	Sessions         []sessionPlan
}

func defaultPlan() Plan {
	return Plan{
		Store:            "memory",
		RedisAddr:        "127.0.0.1:6379",
		RedisPrefix:      redisstore.DefaultPrefix,
		MaxTouchedAssets: 64,
		LogLevel:         slog.LevelWarn,
	}
}

var knownOps = map[string]bool{
	"adjust":   true,
	"deposit":  true,
	"settle":   true,
	"sync":     true,
	"take":     true,
	"mint":     true,
	"burn":     true,
	"transfer": true,
	"swap":     true,
	"donate":   true,
}

// loadPlan reads a TOML plan and overlays it on the defaults.
func loadPlan(path string) (Plan, error) {
	p := defaultPlan()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Plan{}, fmt.Errorf("load plan: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Plan{}, fmt.Errorf("load plan: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("store") {
		p.Store = strings.TrimSpace(raw.Store)
	}
	if meta.IsDefined("redis_addr") {
		p.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("redis_prefix") {
		p.RedisPrefix = raw.RedisPrefix
	}
	if meta.IsDefined("max_touched_assets") {
		p.MaxTouchedAssets = raw.MaxTouchedAssets
	}
	if meta.IsDefined("log_level") {
		if err := p.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return Plan{}, fmt.Errorf("load plan: log_level: %w", err)
		}
	}
	p.Fund = raw.Fund
	p.Sessions = raw.Sessions

	if err := p.validate(); err != nil {
		return Plan{}, fmt.Errorf("load plan: %w", err)
	}
	return p, nil
}

func (p Plan) validate() error {
	switch p.Store {
	case "memory":
	case "redis":
		if p.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required when store = \"redis\"")
		}
	default:
		return fmt.Errorf("unsupported store %q (expected memory or redis)", p.Store)
	}

	for i, f := range p.Fund {
		if f.Owner == "" || f.Asset == "" || f.Amount <= 0 {
			return fmt.Errorf("fund[%d]: owner, asset and a positive amount are required", i)
		}
	}

	if len(p.Sessions) == 0 {
		return fmt.Errorf("no sessions")
	}
	for i, s := range p.Sessions {
		if strings.TrimSpace(s.Caller) == "" {
			return fmt.Errorf("session[%d]: caller is required", i)
		}
		for j, st := range s.Steps {
			if !knownOps[st.Op] {
				return fmt.Errorf("session[%d].step[%d]: unknown op %q", i, j, st.Op)
			}
			if st.Asset == "" {
				return fmt.Errorf("session[%d].step[%d]: asset is required", i, j)
			}
			if (st.Op == "take" || st.Op == "transfer") && st.To == "" {
				return fmt.Errorf("session[%d].step[%d]: %s needs to", i, j, st.Op)
			}
			if st.Op == "swap" && st.Out == "" {
				return fmt.Errorf("session[%d].step[%d]: swap needs out", i, j)
			}
		}
	}
	return nil
}

// owners returns every identity the plan mentions, in first-seen order.
func (p Plan) owners() []string {
	seen := map[string]bool{}
	var out []string
	add := func(o string) {
		if o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, f := range p.Fund {
		add(f.Owner)
	}
	for _, s := range p.Sessions {
		add(s.Caller)
		for _, st := range s.Steps {
			add(st.Owner)
			add(st.To)
		}
	}
	return out
}

// assets returns every asset the plan mentions, in first-seen order.
func (p Plan) assets() []string {
	seen := map[string]bool{}
	var out []string
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, f := range p.Fund {
		add(f.Asset)
	}
	for _, s := range p.Sessions {
		for _, st := range s.Steps {
			add(st.Asset)
			add(st.Out)
		}
	}
	return out
}
