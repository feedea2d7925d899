package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolveLogFilePathDefaultDir(t *testing.T) {
	tmpDir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("get wd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	got, err := resolveLogFilePath(Options{})
	if err != nil {
		t.Fatalf("resolve default log path failed: %v", err)
	}
	if filepath.Base(got) != defaultLogFilename {
		t.Fatalf("unexpected log filename: %s", filepath.Base(got))
	}
	if filepath.Base(filepath.Dir(got)) != defaultLogDirName {
		t.Fatalf("unexpected log dir: %s", filepath.Dir(got))
	}
	if _, err := os.Stat(filepath.Dir(got)); err != nil {
		t.Fatalf("expected log dir to be created: %v", err)
	}
}

func TestReleaseModeWritesRotatedFile(t *testing.T) {
	tmpDir := t.TempDir()
	log := New("release", Options{Dir: tmpDir, Filename: "session.log"})
	log.Sugar().Infow("cart_fetch_done", "items", 3)
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "session.log"))
	if err != nil {
		t.Fatalf("read release log failed: %v", err)
	}
	if !strings.Contains(string(content), "cart_fetch_done") {
		t.Fatalf("expected event name in log, got=%s", string(content))
	}
	if !strings.Contains(string(content), `"items":3`) {
		t.Fatalf("expected structured field in log, got=%s", string(content))
	}
}

func TestDebugModeStaysOnConsole(t *testing.T) {
	tmpDir := t.TempDir()
	log := New(" Debug ", Options{Dir: tmpDir, Filename: "debug.log"})
	log.Info("debug-log-test")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(tmpDir, "debug.log")); !os.IsNotExist(err) {
		t.Fatalf("debug mode should not create log file")
	}
}

func TestFallbackWhenNotInitialized(t *testing.T) {
	prev := L
	L = nil
	t.Cleanup(func() { L = prev })

	if Z() == nil {
		t.Fatalf("Z should never return nil")
	}
	if Named("") == nil || Named("cart") == nil {
		t.Fatalf("Named should never return nil")
	}
}

func TestLevelOption(t *testing.T) {
	tmpDir := t.TempDir()
	log := New("release", Options{Level: "WARN", Dir: tmpDir, Filename: "warn.log"})
	log.Info("payment_poll_tick")
	log.Warn("payment_poll_failed")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "warn.log"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if strings.Contains(string(content), "payment_poll_tick") {
		t.Fatalf("info entry should be filtered at warn level, got=%s", string(content))
	}
	if !strings.Contains(string(content), "payment_poll_failed") {
		t.Fatalf("warn entry missing, got=%s", string(content))
	}
}

func TestResolveLevelFallsBackOnInvalidText(t *testing.T) {
	if got := resolveLevel("loud", false).Level(); got != zapcore.InfoLevel {
		t.Fatalf("want info, got %s", got)
	}
	if got := resolveLevel("", true).Level(); got != zapcore.DebugLevel {
		t.Fatalf("want debug, got %s", got)
	}
}

func TestPositiveOr(t *testing.T) {
	if got := positiveOr(0, 7); got != 7 {
		t.Fatalf("want fallback 7, got %d", got)
	}
	if got := positiveOr(3, 7); got != 3 {
		t.Fatalf("want 3, got %d", got)
	}
}

func TestPackageHelpersUseGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L
	L = zap.New(core)
	t.Cleanup(func() { L = prev })

	Debugw("cart_fetch", "items", 1)
	Infow("payment_init", "payment_no", "P1")
	Warnw("address_sync_failed", "id", 7)
	Errorw("order_cancel_failed", "order_no", "O1")

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("want 4 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range entries {
		if entry.Level != want[i] {
			t.Fatalf("entry %d: want %s, got %s", i, want[i], entry.Level)
		}
	}
	if got := entries[1].ContextMap()["payment_no"]; got != "P1" {
		t.Fatalf("structured field lost, got %v", got)
	}
}
