package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage fwindex configuration settings.

Configuration is loaded from:
  1. --config <file> (if given)
  2. $XDG_CONFIG_HOME/fwindex/config.yaml (if set)
  3. ~/.config/fwindex/config.yaml

Environment variables override config file settings using the FWINDEX_ prefix,
with dots in keys replaced by underscores:
  FWINDEX_ROOT=/srv/firmware
  FWINDEX_HASH=blake2b
  FWINDEX_SEARCH_LIMIT=50
  FWINDEX_SERVE_ADDR=:9000`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, the config file, environment and flags.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by $VISUAL, then $EDITOR, falling back to vi. If the
config file doesn't exist, a default one is created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd, configEditCmd, configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configYAML renders c as the YAML a config file would hold. Secrets are
// masked.
func configYAML(c config.Config) (string, error) {
	if c.S3.SecretKey != "" {
		c.S3.SecretKey = "********"
	}
	out, err := yaml.Marshal(struct {
		Root         string            `yaml:"root"`
		Catalog      string            `yaml:"catalog"`
		ExcludeDirs  []string          `yaml:"exclude_dirs"`
		ExcludeFiles []string          `yaml:"exclude_files"`
		Hash         string            `yaml:"hash"`
		Aliases      map[string]string `yaml:"aliases,omitempty"`
		AliasesFile  string            `yaml:"aliases_file,omitempty"`
		Origin       string            `yaml:"origin,omitempty"`
		Index        map[string]any    `yaml:"index"`
		Search       map[string]any    `yaml:"search"`
		Archive      map[string]any    `yaml:"archive"`
		Serve        map[string]any    `yaml:"serve"`
		S3           map[string]any    `yaml:"s3,omitempty"`
		Logging      map[string]any    `yaml:"logging"`
	}{
		Root:         c.Root,
		Catalog:      c.CatalogPath(),
		ExcludeDirs:  c.ExcludeDirs,
		ExcludeFiles: c.ExcludeFiles,
		Hash:         c.Hash,
		Aliases:      c.Aliases,
		AliasesFile:  c.AliasesFile,
		Origin:       c.Origin,
		Index: map[string]any{
			"workers":         c.Index.Workers,
			"hash_cache":      c.Index.HashCache,
			"hash_cache_path": c.Index.HashCachePath,
			"watch_debounce":  c.Index.WatchDebounce.String(),
		},
		Search: map[string]any{
			"limit":     c.Search.Limit,
			"threshold": c.Search.Threshold,
			"debounce":  c.Search.Debounce.String(),
		},
		Archive: map[string]any{
			"batch_size": c.Archive.BatchSize,
			"output_dir": c.Archive.OutputDir,
		},
		Serve: map[string]any{
			"addr":    c.Serve.Addr,
			"metrics": c.Serve.Metrics,
		},
		S3: s3Map(c.S3),
		Logging: map[string]any{
			"level":       c.Logging.Level,
			"path":        c.Logging.Path,
			"console":     c.Logging.Console,
			"max_size":    c.Logging.MaxSize,
			"max_backups": c.Logging.MaxBackups,
			"components":  c.Logging.Components,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render configuration: %w", err)
	}
	return string(out), nil
}

func s3Map(c config.S3Config) map[string]any {
	if c == (config.S3Config{}) {
		return nil
	}
	return map[string]any{
		"region":     c.Region,
		"endpoint":   c.Endpoint,
		"access_key": c.AccessKey,
		"secret_key": c.SecretKey,
	}
}

// envOverrides returns the FWINDEX_ variables set in the environment.
func envOverrides(environ []string) []string {
	var out []string
	for _, kv := range environ {
		if strings.HasPrefix(kv, "FWINDEX_") {
			name, value, _ := strings.Cut(kv, "=")
			if strings.Contains(name, "SECRET") {
				value = "********"
			}
			out = append(out, name+"="+value)
		}
	}
	sort.Strings(out)
	return out
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	configFile := viper.ConfigFileUsed()
	if _, err := os.Stat(configFile); configFile != "" && err == nil {
		fmt.Printf("# Config file: %s\n", configFile)
	} else {
		fmt.Println("# Config file: (using defaults, no file found)")
	}

	rendered, err := configYAML(*cfg)
	if err != nil {
		return err
	}
	fmt.Print(rendered)

	if overrides := envOverrides(os.Environ()); len(overrides) > 0 {
		fmt.Println("\n# Environment overrides:")
		for _, o := range overrides {
			fmt.Printf("#   %s\n", o)
		}
	}
	return nil
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'fwindex config edit' to modify it.")
		return nil
	}
	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Created default config file: %s", path)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path := config.ConfigFile()
	fmt.Println(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
