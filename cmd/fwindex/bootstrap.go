package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// annotationTUI marks commands that own the terminal, so console logging
// stays off.
const annotationTUI = "fwindex/tui"

// viperKeyAnnotation names the viper key a local flag binds to when it
// differs from the flag name.
const viperKeyAnnotation = "fwindex/viper-key"

// bindKey records the viper key for a flag on cmd.
func bindKey(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, viperKeyAnnotation, []string{key})
}

// bindFlags binds the running command's local flags into viper. Binding at
// run time keeps commands that share a flag name from overriding each
// other's bindings.
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if keys := f.Annotations[viperKeyAnnotation]; len(keys) > 0 {
			key = keys[0]
		}
		if err := viper.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// loadConfig configures v for the standard locations, reads the file and
// decodes it.
func loadConfig(v *viper.Viper, file string) (*config.Config, error) {
	config.Configure(v, file)
	if err := config.Read(v); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

// consoleLevel picks the stderr log level: debug when verbose, off when
// quiet, the configured level otherwise.
func consoleLevel(configured string, verbose, quiet bool) string {
	switch {
	case quiet:
		return ""
	case verbose:
		return "debug"
	default:
		return configured
	}
}

// parseRotationConfig converts the config file's rotation settings.
func parseRotationConfig(cfg config.LoggingConfig) logging.RotationConfig {
	rotation := logging.DefaultRotationConfig()
	if cfg.MaxSize != "" {
		if size, err := types.ParseSize(cfg.MaxSize); err == nil && size > 0 {
			rotation.MaxSize = size
		}
	}
	if cfg.MaxBackups > 0 {
		rotation.MaxBackups = cfg.MaxBackups
	}
	return rotation
}

func initLogging(cfg config.LoggingConfig, console string) error {
	if err := logging.Init(logging.Config{
		Level:        cfg.Level,
		Path:         cfg.Path,
		Rotation:     parseRotationConfig(cfg),
		Components:   cfg.Components,
		ConsoleLevel: console,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveAliases merges the inline alias table with the alias file; file
// entries win.
func resolveAliases(c *config.Config) (map[string]string, error) {
	tables := []map[string]string{c.Aliases}
	if c.AliasesFile != "" {
		fromFile, err := catalog.LoadAliases(c.AliasesFile)
		if err != nil {
			return nil, err
		}
		tables = append(tables, fromFile)
	}
	return catalog.MergeAliases(tables...), nil
}

// loadCatalog loads the configured catalog and overlays the configured
// aliases on a copy.
func loadCatalog(ctx context.Context) (*types.Catalog, string, error) {
	loc := cfg.CatalogPath()
	c, err := catalog.Load(ctx, loc)
	if err != nil {
		return nil, loc, fmt.Errorf("loading catalog %s: %w", loc, err)
	}
	c, err = overlayAliases(c)
	return c, loc, err
}

// overlayAliases returns c with the configured aliases merged over its own.
func overlayAliases(c *types.Catalog) (*types.Catalog, error) {
	aliases, err := resolveAliases(cfg)
	if err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return c, nil
	}
	merged := *c
	merged.Aliases = catalog.MergeAliases(c.Aliases, aliases)
	return &merged, nil
}

// openEngine loads the catalog into a query engine.
func openEngine(ctx context.Context) (*query.Engine, string, error) {
	c, loc, err := loadCatalog(ctx)
	if err != nil {
		return nil, loc, err
	}
	return query.NewEngine(c), loc, nil
}
