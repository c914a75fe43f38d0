package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "webcheck.yaml")

	content := `
timeout: 15
headless: true
driverPath: /opt/chromedriver
backend: cdp
output: out/results.json
metricsFile: /var/lib/node_exporter/webcheck.prom
stopOnFail: true
vars:
  USER: test
  PASS: secret
captcha:
  policy: fail
  settleMs: 500
  invalidAll: [captcha]
  invalidAny: [wrong]
ocr:
  tesseract: /usr/local/bin/tesseract
  lang: eng
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timeout == nil || *cfg.Timeout != 15 {
		t.Errorf("expected timeout 15, got %v", cfg.Timeout)
	}
	if cfg.Headless == nil || !*cfg.Headless {
		t.Errorf("expected headless true, got %v", cfg.Headless)
	}
	if cfg.DriverPath != "/opt/chromedriver" {
		t.Errorf("expected driverPath /opt/chromedriver, got %s", cfg.DriverPath)
	}
	if cfg.Backend != BackendCDP {
		t.Errorf("expected backend cdp, got %s", cfg.Backend)
	}
	if cfg.Output != "out/results.json" {
		t.Errorf("expected output out/results.json, got %s", cfg.Output)
	}
	if cfg.StopOnFail == nil || !*cfg.StopOnFail {
		t.Errorf("expected stopOnFail true, got %v", cfg.StopOnFail)
	}
	if cfg.Vars["USER"] != "test" || cfg.Vars["PASS"] != "secret" {
		t.Errorf("expected vars {USER:test, PASS:secret}, got %v", cfg.Vars)
	}
	if cfg.Captcha.Policy != "fail" {
		t.Errorf("expected captcha policy fail, got %s", cfg.Captcha.Policy)
	}
	if cfg.Captcha.SettleMs == nil || *cfg.Captcha.SettleMs != 500 {
		t.Errorf("expected settleMs 500, got %v", cfg.Captcha.SettleMs)
	}
	if len(cfg.Captcha.InvalidAll) != 1 || cfg.Captcha.InvalidAny[0] != "wrong" {
		t.Errorf("unexpected invalid phrases: %v %v", cfg.Captcha.InvalidAll, cfg.Captcha.InvalidAny)
	}
	if cfg.OCR.Tesseract != "/usr/local/bin/tesseract" {
		t.Errorf("expected tesseract path, got %s", cfg.OCR.Tesseract)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/webcheck.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "webcheck.yaml")

	content := `vars: [invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"backend", "backend: firefox", "unknown backend"},
		{"timeout", "timeout: 0", "timeout must be positive"},
		{"settle", "captcha:\n  settleMs: -1", "settleMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "webcheck.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(configPath)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "webcheck.yaml")

	content := ``
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timeout != nil || cfg.Headless != nil || len(cfg.Vars) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadFromDir_WebcheckYaml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "webcheck.yaml")

	content := `backend: webdriver`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend != "webdriver" {
		t.Errorf("expected backend webdriver, got %s", cfg.Backend)
	}
}

func TestLoadFromDir_WebcheckYml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "webcheck.yml")

	content := `backend: cdp`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend != "cdp" {
		t.Errorf("expected backend cdp, got %s", cfg.Backend)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should return empty config
	if cfg.Backend != "" {
		t.Errorf("expected empty backend, got %s", cfg.Backend)
	}
	if len(cfg.Vars) != 0 {
		t.Errorf("expected empty vars, got %v", cfg.Vars)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	// Create both webcheck.yaml and webcheck.yml
	yamlContent := `backend: cdp`
	ymlContent := `backend: webdriver`

	if err := os.WriteFile(filepath.Join(dir, "webcheck.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "webcheck.yml"), []byte(ymlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should prefer webcheck.yaml
	if cfg.Backend != "cdp" {
		t.Errorf("expected backend cdp (from webcheck.yaml), got %s", cfg.Backend)
	}
}
