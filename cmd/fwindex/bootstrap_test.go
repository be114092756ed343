package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestParseRotationConfig(t *testing.T) {
	tests := []struct {
		name     string
		input    config.LoggingConfig
		expected logging.RotationConfig
	}{
		{
			name:     "config defaults",
			input:    config.LoggingConfig{MaxSize: "10MB", MaxBackups: 5},
			expected: logging.RotationConfig{MaxSize: 10 * 1024 * 1024, MaxBackups: 5},
		},
		{
			name:     "gigabytes",
			input:    config.LoggingConfig{MaxSize: "1G", MaxBackups: 3},
			expected: logging.RotationConfig{MaxSize: 1024 * 1024 * 1024, MaxBackups: 3},
		},
		{
			name:     "empty max_size uses default",
			input:    config.LoggingConfig{MaxBackups: 2},
			expected: logging.RotationConfig{MaxSize: 10 * 1024 * 1024, MaxBackups: 2},
		},
		{
			name:     "invalid max_size uses default",
			input:    config.LoggingConfig{MaxSize: "lots", MaxBackups: 0},
			expected: logging.DefaultRotationConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRotationConfig(tt.input)
			if got != tt.expected {
				t.Errorf("parseRotationConfig() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestConsoleLevel(t *testing.T) {
	tests := []struct {
		configured     string
		verbose, quiet bool
		want           string
	}{
		{"warn", false, false, "warn"},
		{"warn", true, false, "debug"},
		{"warn", false, true, ""},
		{"warn", true, true, ""},
		{"", false, false, ""},
	}
	for _, tt := range tests {
		if got := consoleLevel(tt.configured, tt.verbose, tt.quiet); got != tt.want {
			t.Errorf("consoleLevel(%q, %t, %t) = %q, want %q", tt.configured, tt.verbose, tt.quiet, got, tt.want)
		}
	}
}

func TestBindFlagsUsesAnnotatedKey(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("batch-size", 5, "")
	cmd.Flags().Bool("dry-run", false, "")
	bindKey(cmd, "batch-size", "archive.batch_size")

	if err := cmd.Flags().Parse([]string{"--batch-size", "9", "--dry-run"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := bindFlags(cmd); err != nil {
		t.Fatalf("bindFlags() error = %v", err)
	}

	if got := viper.GetInt("archive.batch_size"); got != 9 {
		t.Errorf("archive.batch_size = %d, want 9", got)
	}
	if !viper.GetBool("dry_run") {
		t.Error("dry_run should default to the flag name with underscores")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `root: /srv/firmware
hash: blake2b
aliases:
  TG-789: TG789vac
search:
  limit: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := loadConfig(viper.New(), path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if c.Root != "/srv/firmware" {
		t.Errorf("Root = %q", c.Root)
	}
	if c.Hash != "blake2b" {
		t.Errorf("Hash = %q", c.Hash)
	}
	if c.Search.Limit != 25 {
		t.Errorf("Search.Limit = %d", c.Search.Limit)
	}
	if c.Search.Threshold != config.DefaultSearchThreshold {
		t.Errorf("Search.Threshold = %g, want default", c.Search.Threshold)
	}
	if c.CatalogPath() != filepath.Join("/srv/firmware", config.DefaultCatalogName) {
		t.Errorf("CatalogPath() = %q", c.CatalogPath())
	}
	// viper lowercases map keys.
	if c.Aliases["tg-789"] != "TG789vac" {
		t.Errorf("Aliases = %v", c.Aliases)
	}
}

func TestResolveAliasesFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	if err := os.WriteFile(path, []byte(`{"aliases":{"TG-789":"TG789vac","Fritz":"FB7590"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveAliases(&config.Config{
		Aliases:     map[string]string{"TG-789": "Other", "HG": "HG8245"},
		AliasesFile: path,
	})
	if err != nil {
		t.Fatalf("resolveAliases() error = %v", err)
	}
	want := map[string]string{"TG-789": "TG789vac", "Fritz": "FB7590", "HG": "HG8245"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("aliases[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestOverlayAliasesCopiesCatalog(t *testing.T) {
	cfg = &config.Config{Aliases: map[string]string{"TG-789": "TG789vac"}}
	defer func() { cfg = nil }()

	original := &types.Catalog{Devices: []string{"TG789vac"}}
	got, err := overlayAliases(original)
	if err != nil {
		t.Fatalf("overlayAliases() error = %v", err)
	}
	if got.Aliases["TG-789"] != "TG789vac" {
		t.Errorf("Aliases = %v", got.Aliases)
	}
	if original.Aliases != nil {
		t.Error("the loaded catalog must not be modified")
	}
}
