package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNoopBeforeInit(t *testing.T) {
	Close()
	Info("dropped %d", 1)
	if GetWriter() == nil {
		t.Fatal("GetWriter() returned nil")
	}
}

func TestInitWriter_Levels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo)
	defer Close()

	Debug("hidden")
	Info("flow %s started", "login")
	Warn("close failed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message written at info level: %q", out)
	}
	if !strings.Contains(out, "flow login started") {
		t.Errorf("info message missing: %q", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("warn level missing: %q", out)
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	Error("boom %v", 42)
	With("flow", "checkout").Info("step done")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "boom 42") || !strings.Contains(string(data), "flow=checkout") {
		t.Errorf("log file = %q", data)
	}
}

func TestInit_BadPath(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "missing", "dir", "x.log")); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestInit_FileAndVerboseWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	var console bytes.Buffer
	InitWriter(&console, slog.LevelInfo)

	Debug("file only")
	Info("both sinks")
	With("flow", "login").Warn("step failed")
	if _, err := GetWriter().Write([]byte("chromedriver: listening\n")); err != nil {
		t.Fatalf("GetWriter().Write() error: %v", err)
	}
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	file := string(data)
	for _, want := range []string{"file only", "both sinks", "flow=login", "chromedriver: listening"} {
		if !strings.Contains(file, want) {
			t.Errorf("log file missing %q: %q", want, file)
		}
	}

	out := console.String()
	if strings.Contains(out, "file only") {
		t.Errorf("debug message reached info-level console: %q", out)
	}
	for _, want := range []string{"both sinks", "flow=login", "chromedriver: listening"} {
		if !strings.Contains(out, want) {
			t.Errorf("console missing %q: %q", want, out)
		}
	}
}

func TestInitWriter_ThenInit(t *testing.T) {
	var console bytes.Buffer
	InitWriter(&console, slog.LevelDebug)
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	Info("kept")
	Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "kept") || !strings.Contains(console.String(), "kept") {
		t.Errorf("file = %q, console = %q", data, console.String())
	}
}
