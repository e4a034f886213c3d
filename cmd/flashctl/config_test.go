package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlanAppliesDefaults(t *testing.T) {
	path := writePlan(t, `
[[session]]
caller = "alice"

  [[session.step]]
  op = "adjust"
  asset = "usdc"
  amount = 0
`)

	p, err := loadPlan(path)
	if err != nil {
		t.Fatalf("loadPlan: %v", err)
	}
	want := defaultPlan()
	if p.Store != want.Store || p.MaxTouchedAssets != want.MaxTouchedAssets || p.LogLevel != want.LogLevel {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if len(p.Sessions) != 1 || len(p.Sessions[0].Steps) != 1 {
		t.Fatalf("sessions = %+v", p.Sessions)
	}
}

func TestLoadPlanOverridesDefinedKeys(t *testing.T) {
	path := writePlan(t, `
store = "redis"
redis_addr = "10.0.0.1:6379"
redis_prefix = "test:"
max_touched_assets = 4
log_level = "debug"

[[fund]]
owner = "alice"
asset = "usdc"
amount = 100

[[session]]
caller = "alice"
expect_fail = true

  [[session.step]]
  op = "take"
  asset = "usdc"
  to = "bob"
  amount = 5
`)

	p, err := loadPlan(path)
	if err != nil {
		t.Fatalf("loadPlan: %v", err)
	}
	if p.Store != "redis" || p.RedisAddr != "10.0.0.1:6379" || p.RedisPrefix != "test:" {
		t.Fatalf("store settings = %+v", p)
	}
	if p.MaxTouchedAssets != 4 {
		t.Fatalf("max_touched_assets = %d", p.MaxTouchedAssets)
	}
	if p.LogLevel != slog.LevelDebug {
		t.Fatalf("log_level = %v", p.LogLevel)
	}
	if !p.Sessions[0].ExpectFail {
		t.Fatal("expect_fail not decoded")
	}
	if got := p.owners(); strings.Join(got, ",") != "alice,bob" {
		t.Fatalf("owners = %v", got)
	}
}

func TestLoadPlanRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown op": `
[[session]]
caller = "alice"
  [[session.step]]
  op = "steal"
  asset = "usdc"
`,
		"missing asset": `
[[session]]
caller = "alice"
  [[session.step]]
  op = "settle"
`,
		"take without recipient": `
[[session]]
caller = "alice"
  [[session.step]]
  op = "take"
  asset = "usdc"
  amount = 1
`,
		"unsupported store": `
store = "etcd"
[[session]]
caller = "alice"
`,
		"no sessions": `
store = "memory"
`,
		"unknown key": `
colour = "blue"
[[session]]
caller = "alice"
`,
		"bad fund": `
[[fund]]
owner = "alice"
asset = "usdc"
amount = -1
[[session]]
caller = "alice"
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadPlan(writePlan(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadPlanMissingFile(t *testing.T) {
	if _, err := loadPlan(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
