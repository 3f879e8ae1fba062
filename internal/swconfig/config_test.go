package swconfig_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dantte-lp/udpswitch/internal/swconfig"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := swconfig.DefaultConfig()

	if cfg.NIC.BucketCount != 512 {
		t.Errorf("NIC.BucketCount = %d, want %d", cfg.NIC.BucketCount, 512)
	}

	if cfg.TAP.Name != "udpswitch0" {
		t.Errorf("TAP.Name = %q, want %q", cfg.TAP.Name, "udpswitch0")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if err := swconfig.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
nic:
  fanout_group_id: 7
  bucket_count: 1024
tap:
  name: "tap-sw0"
  read_buffer_size: 4096
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "json"
`

	path := writeTemp(t, yamlContent)

	cfg, err := swconfig.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.NIC.FanoutGroupID != 7 {
		t.Errorf("NIC.FanoutGroupID = %d, want %d", cfg.NIC.FanoutGroupID, 7)
	}

	if cfg.NIC.BucketCount != 1024 {
		t.Errorf("NIC.BucketCount = %d, want %d", cfg.NIC.BucketCount, 1024)
	}

	if cfg.TAP.Name != "tap-sw0" {
		t.Errorf("TAP.Name = %q, want %q", cfg.TAP.Name, "tap-sw0")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override log.level. Everything else inherits
	// from defaults.
	yamlContent := `
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := swconfig.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.NIC.BucketCount != 512 {
		t.Errorf("NIC.BucketCount = %d, want default %d", cfg.NIC.BucketCount, 512)
	}

	if cfg.TAP.Name != "udpswitch0" {
		t.Errorf("TAP.Name = %q, want default %q", cfg.TAP.Name, "udpswitch0")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*swconfig.Config)
		wantErr error
	}{
		{
			name: "bucket count below minimum",
			modify: func(cfg *swconfig.Config) {
				cfg.NIC.BucketCount = 511
			},
			wantErr: swconfig.ErrInvalidBucketCount,
		},
		{
			name: "empty tap name",
			modify: func(cfg *swconfig.Config) {
				cfg.TAP.Name = ""
			},
			wantErr: swconfig.ErrEmptyTAPName,
		},
		{
			name: "zero read buffer size",
			modify: func(cfg *swconfig.Config) {
				cfg.TAP.ReadBufferSize = 0
			},
			wantErr: swconfig.ErrInvalidReadBufferSize,
		},
		{
			name: "negative read buffer size",
			modify: func(cfg *swconfig.Config) {
				cfg.TAP.ReadBufferSize = -1
			},
			wantErr: swconfig.ErrInvalidReadBufferSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := swconfig.DefaultConfig()
			tt.modify(cfg)

			err := swconfig.Validate(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := `
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("UDPSWITCH_LOG_LEVEL", "debug")
	t.Setenv("UDPSWITCH_TAP_NAME", "tap-env")

	cfg, err := swconfig.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}

	if cfg.TAP.Name != "tap-env" {
		t.Errorf("TAP.Name = %q, want %q (from env)", cfg.TAP.Name, "tap-env")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"nonsense", "INFO"},
	}

	for _, tt := range tests {
		if got := swconfig.ParseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// writeTemp creates a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "udpswitch.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
