package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("显式指定的配置文件不存在时应报错, got %+v", cfg)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  environment: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Environment != "test" {
		t.Fatalf("environment 不正确: %q", cfg.App.Environment)
	}
	if cfg.Input.BatchPath != "./log_input/batch_log.json" {
		t.Fatalf("unexpected batch path %q", cfg.Input.BatchPath)
	}
	if cfg.Output.Path != "./log_output/flagged_purchases.json" {
		t.Fatalf("unexpected output path %q", cfg.Output.Path)
	}
	if cfg.Watch.Interval != 5*time.Second {
		t.Fatalf("unexpected watch interval %s", cfg.Watch.Interval)
	}
	if cfg.SkipBadEvents() {
		t.Fatal("default policy should abort")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
pipeline:
  on_error: skip
watch:
  interval: 250ms
alerting:
  channels: telegram,log
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANOMALYWATCH_OUTPUT_PATH", "/tmp/flagged.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.SkipBadEvents() {
		t.Fatal("skip policy not applied")
	}
	if cfg.Watch.Interval != 250*time.Millisecond {
		t.Fatalf("unexpected interval %s", cfg.Watch.Interval)
	}
	if cfg.Output.Path != "/tmp/flagged.json" {
		t.Fatalf("env override ignored: %q", cfg.Output.Path)
	}
	if len(cfg.Alerting.Channels) != 2 {
		t.Fatalf("channels 解析错误: %#v", cfg.Alerting.Channels)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Input:    InputConfig{BatchPath: "b", StreamPath: "s"},
			Output:   OutputConfig{Path: "o"},
			Pipeline: PipelineConfig{OnError: OnErrorAbort},
			Watch:    WatchConfig{Interval: time.Second},
			Export:   ExportConfig{MaxDataPoints: 10},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"policy":   func(c *Config) { c.Pipeline.OnError = "ignore" },
		"interval": func(c *Config) { c.Watch.Interval = 0 },
		"output":   func(c *Config) { c.Output.Path = "" },
		"telegram": func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"export":   func(c *Config) { c.Export.MaxDataPoints = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := Config{Export: ExportConfig{MaxDataPoints: 100}}
	if got := cfg.ResolveMaxPoints(0); got != 100 {
		t.Fatalf("got %d", got)
	}
	if got := cfg.ResolveMaxPoints(5); got != 5 {
		t.Fatalf("got %d", got)
	}
}
