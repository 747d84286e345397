// Package cmd implements the fathom CLI.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathom/internal/config"
	"github.com/fathomlabs/fathom/internal/observability"
)

// versionInfo holds build metadata injected at link time via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version output.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// AppIdentity describes the binary's naming surface: what the executable
// is called, which env prefix it honors, and which config file it reads.
type AppIdentity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var appIdentity *AppIdentity

// GetAppIdentity returns the identity set during init, or nil.
func GetAppIdentity() *AppIdentity {
	return appIdentity
}

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fathom",
	Short: "Deep research pipeline",
	Long: `fathom runs iterative, LLM-driven web research and produces cited
markdown reports.

A research run fans out into search queries, extracts learnings from the
result pages, and recurses on follow-up directions. A second, grounded
strategy runs in parallel and both sets of findings are merged into the
final report.

Run as a one-shot job from a manifest:
  fathom research --job research.yaml

Or as an HTTP service:
  fathom serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default fathom.yaml in working directory)")

	appIdentity = &AppIdentity{
		BinaryName: "fathom",
		EnvPrefix:  config.EnvPrefix,
		ConfigName: "fathom",
	}
}

// initConfig primes the global viper instance so early CLI paths see
// defaults and env overrides. Commands that need the full validated
// configuration go through config.Load instead.
func initConfig() {
	setDefaults()

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers configuration defaults on the global viper
// instance.
func setDefaults() {
	config.SetDefaults(viper.GetViper())
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Error("Command failed", zap.Error(err))
		return err
	}
	return nil
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}

// ExitWithCode logs the failure and terminates the process immediately
// with the given exit code. Used where an error return cannot carry the
// code to the caller.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
	observability.Sync()
	os.Exit(code)
}
