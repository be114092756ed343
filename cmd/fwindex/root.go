package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// cfg is the resolved configuration, loaded before every command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "fwindex",
		Short: "Index, search and package firmware trees",
		Long: `fwindex walks a firmware tree laid out as device/isp/category/...,
writes a catalog of every file with its facets and content hash, and lets you
browse, filter, search and download what it found.

Examples:
  fwindex index /srv/firmware          # Write /srv/firmware/catalog.json
  fwindex ls A/ISP1 --ext xml          # List a directory, XML files only
  fwindex search "tg789 telia"         # Fuzzy + exact search
  fwindex archive A/ISP1 --out .       # Download a directory as ISP1.zip
  fwindex serve /srv/firmware          # HTTP API, files and metrics
  fwindex browse                       # Interactive catalog browser`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/fwindex/config.yaml)")
	rootCmd.PersistentFlags().StringP("catalog", "c", "", "catalog file or URL (default: <root>/catalog.json)")
	rootCmd.PersistentFlags().String("root", "", "firmware tree root")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")

	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// setup binds the running command's local flags, loads configuration and
// initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	loaded, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	console := consoleLevel(cfg.Logging.Console, getVerbose(), getQuiet())
	if cmd.Annotations[annotationTUI] != "" {
		console = ""
	}
	return initLogging(cfg.Logging, console)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		return err
	}
	return nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message to stderr unless quiet mode is enabled. Stdout
// is reserved for command output.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printVerbose prints a message to stderr in verbose mode.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
