package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"purchase-anomaly-alerts/internal/config"
	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/storage"
)

const batchLog = `{"D":"1", "T":"2"}
{"event_type":"befriend", "timestamp":"2017-06-13 11:33:01", "id1": "1", "id2": "2"}
{"event_type":"befriend", "timestamp":"2017-06-13 11:33:01", "id1": "1", "id2": "3"}
{"event_type":"purchase", "timestamp":"2017-06-13 11:33:01", "id": "2", "amount": "50.00"}
{"event_type":"purchase", "timestamp":"2017-06-13 11:33:01", "id": "3", "amount": "60.00"}
`

const streamLog = `{"event_type":"purchase", "timestamp":"2017-06-13 12:00:00", "id": "1", "amount": "1000.00"}
{"event_type":"purchase", "timestamp":"2017-06-13 12:00:01", "id": "1", "amount": "58.00"}
`

const wantFlagged = `{"event_type":"purchase","timestamp":"2017-06-13 12:00:00","id":"1","amount":"1000.00","mean":"55.00","sd":"5.00"}` + "\n"

func testConfig(dir string) *config.Config {
	return &config.Config{
		Input: config.InputConfig{
			BatchPath:  filepath.Join(dir, "log_input", "batch_log.json"),
			StreamPath: filepath.Join(dir, "log_input", "stream_log.json"),
		},
		Output:   config.OutputConfig{Path: filepath.Join(dir, "log_output", "flagged_purchases.json")},
		Pipeline: config.PipelineConfig{OnError: config.OnErrorAbort},
		Watch:    config.WatchConfig{Interval: 20 * time.Millisecond},
		Export:   config.ExportConfig{MaxDataPoints: 1000},
	}
}

func writeInputs(t *testing.T, cfg *config.Config, batch, stream string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(cfg.Input.BatchPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Input.BatchPath, []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Input.StreamPath, []byte(stream), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestDetect(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInputs(t, cfg, batchLog, streamLog)

	a := NewApp(cfg, zerolog.Nop())
	if err := a.Detect(context.Background(), DetectOptions{}); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got := readOutput(t, cfg.Output.Path); got != wantFlagged {
		t.Fatalf("输出不正确:\n got %q\nwant %q", got, wantFlagged)
	}
}

func TestDetectExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeInputs(t, cfg, batchLog, streamLog)

	out := filepath.Join(dir, "elsewhere", "out.json")
	a := NewApp(testConfig(filepath.Join(dir, "unused")), zerolog.Nop())
	err := a.Detect(context.Background(), DetectOptions{
		BatchPath:  cfg.Input.BatchPath,
		StreamPath: cfg.Input.StreamPath,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got := readOutput(t, out); got != wantFlagged {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDetectAbortsOnBadStreamEvent(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInputs(t, cfg, batchLog, `{"event_type":"unfriend","id1":"1","id2":"42"}`+"\n"+streamLog)

	a := NewApp(cfg, zerolog.Nop())
	err := a.Detect(context.Background(), DetectOptions{})
	if err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Fatalf("expected unknown user error, got %v", err)
	}

	cfg.Pipeline.OnError = config.OnErrorSkip
	if err := a.Detect(context.Background(), DetectOptions{}); err != nil {
		t.Fatalf("skip policy should continue: %v", err)
	}
	if got := readOutput(t, cfg.Output.Path); got != wantFlagged {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDetectMissingBatch(t *testing.T) {
	cfg := testConfig(t.TempDir())
	a := NewApp(cfg, zerolog.Nop())
	if err := a.Detect(context.Background(), DetectOptions{}); err == nil {
		t.Fatal("missing batch log should fail")
	}
}

func TestWatchFollowsAppends(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInputs(t, cfg, batchLog, "")

	a := NewApp(cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, DetectOptions{}) }()

	time.Sleep(60 * time.Millisecond)
	f, err := os.OpenFile(cfg.Input.StreamPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(streamLog); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, _ := os.ReadFile(cfg.Output.Path); string(data) == wantFlagged {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := readOutput(t, cfg.Output.Path); got != wantFlagged {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestExportFromOutputLog(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeInputs(t, cfg, batchLog, streamLog)

	a := NewApp(cfg, zerolog.Nop())
	if err := a.Detect(context.Background(), DetectOptions{}); err != nil {
		t.Fatalf("detect: %v", err)
	}

	csvPath := filepath.Join(dir, "export", "flagged.csv")
	if err := a.Export(context.Background(), ExportOptions{CSVPath: csvPath}); err != nil {
		t.Fatalf("export: %v", err)
	}
	got := readOutput(t, csvPath)
	want := "purchased_at,user_id,amount,mean,sd,cutoff\n2017-06-13 12:00:00,1,1000.00,55.00,5.00,70.00\n"
	if got != want {
		t.Fatalf("csv 不正确:\n got %q\nwant %q", got, want)
	}

	from := time.Date(2017, 6, 14, 0, 0, 0, 0, time.UTC)
	empty := filepath.Join(dir, "export", "empty.csv")
	if err := a.Export(context.Background(), ExportOptions{CSVPath: empty, From: &from}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatal("empty window should not create a file")
	}
}

func TestExportRequiresTarget(t *testing.T) {
	a := NewApp(testConfig(t.TempDir()), zerolog.Nop())
	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without --csv/--png")
	}
}

func TestDownsampleFlagged(t *testing.T) {
	records := make([]storage.FlaggedPurchase, 10)
	for i := range records {
		records[i].UserID = int64(i)
	}

	got := downsampleFlagged(records, 4)
	if len(got) != 4 || got[0].UserID != 0 || got[3].UserID != 9 {
		t.Fatalf("unexpected downsample %#v", got)
	}
	if len(downsampleFlagged(records, 20)) != 10 {
		t.Fatal("short input should be returned unchanged")
	}
	if got := downsampleFlagged(records, 1); len(got) != 1 || got[0].UserID != 9 {
		t.Fatalf("unexpected single point %#v", got)
	}
}

func TestParseFlaggedRecord(t *testing.T) {
	rec, err := parseFlaggedRecord(eventlog.FlaggedRecord{
		EventType: "purchase",
		Timestamp: "2017-06-13 12:00:00",
		ID:        json.RawMessage(`"12"`),
		Amount:    "1000.00",
		Mean:      "55.00",
		SD:        "5.00",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.UserID != 12 || !cutoffOf(rec).Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected record %#v", rec)
	}

	if _, err := parseFlaggedRecord(eventlog.FlaggedRecord{Timestamp: "2017-06-13 12:00:00", ID: json.RawMessage(`"x"`)}); err == nil {
		t.Fatal("bad id should fail")
	}
}

func TestBackfillDryRun(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInputs(t, cfg, batchLog, streamLog)
	a := NewApp(cfg, zerolog.Nop())
	if err := a.Detect(context.Background(), DetectOptions{}); err != nil {
		t.Fatalf("detect: %v", err)
	}

	if err := a.Backfill(context.Background(), BackfillOptions{DryRun: true}); err != nil {
		t.Fatalf("dry-run: %v", err)
	}
	if err := a.Backfill(context.Background(), BackfillOptions{}); err == nil {
		t.Fatal("backfill without database should fail")
	}
}

func TestSimulateAlert(t *testing.T) {
	texts := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		texts <- body["text"]
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	cfg := testConfig(t.TempDir())
	cfg.Alerting = config.AlertingConfig{
		Enabled: true,
		Telegram: config.TelegramConfig{
			Enabled:  true,
			BotToken: "token",
			ChatID:   "chat",
			APIBase:  srv.URL,
		},
	}
	a := NewApp(cfg, zerolog.Nop())

	err := a.SimulateAlert(context.Background(), SimulateOptions{UserID: 1, Amount: "500", Mean: "100", StdDev: "20"})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if text := <-texts; !strings.Contains(text, "Network mean: 100.00 (sd 20.00, cutoff 160.00)") {
		t.Fatalf("unexpected alert text %q", text)
	}

	err = a.SimulateAlert(context.Background(), SimulateOptions{UserID: 1, Amount: "160", Mean: "100", StdDev: "20"})
	if err == nil {
		t.Fatal("amount at the cutoff must not alert")
	}
	if err := a.SimulateAlert(context.Background(), SimulateOptions{UserID: 1, Amount: "1", Mean: "1", StdDev: "5"}); err == nil {
		t.Fatal("sd larger than mean should be rejected")
	}
}

func TestSimulateAlertDisabled(t *testing.T) {
	a := NewApp(testConfig(t.TempDir()), zerolog.Nop())
	if err := a.SimulateAlert(context.Background(), SimulateOptions{Amount: "1", Mean: "1", StdDev: "0"}); err == nil {
		t.Fatal("alerting disabled should fail")
	}
}
