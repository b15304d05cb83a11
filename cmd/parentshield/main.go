// Package main is the CLI entry point for parentshield.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ulrichando/ParentShield/internal/daemon"
	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/infra"
	"github.com/ulrichando/ParentShield/internal/ipc"
	"github.com/ulrichando/ParentShield/internal/policy"
	"github.com/ulrichando/ParentShield/internal/settings"
	"github.com/ulrichando/ParentShield/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "parentshield",
	Short: "ParentShield - parental control for games, AI tools and websites",
	Long: `parentshield controls the ParentShield enforcement daemon.

The daemon runs as root, terminates blocked games and AI tools, denies their
domains through the hosts file and blocks DNS-over-HTTPS resolvers while the
schedule is active. Every other command talks to it over a local socket.`,
	Version:      Version,
	SilenceUsage: true,
}

// Hidden daemon command - started by the service manager
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the enforcement daemon in the foreground",
	Hidden: true,
	RunE:   runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	settingsFile   string
	envFile        string
	socketOverride string
	jsonOutput     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", settings.DefaultFile, "Daemon settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", settings.DefaultEnvFile, "Optional dotenv overrides")
	rootCmd.PersistentFlags().StringVar(&socketOverride, "socket", "", "Control socket path (overrides settings)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadSettings() (*settings.Settings, error) {
	s, err := settings.Load(settingsFile, envFile)
	if err != nil {
		return nil, err
	}
	if socketOverride != "" {
		s.SocketPath = socketOverride
	}
	return s, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	logger := createLogger(s)
	defer func() { _ = logger.Sync() }()

	if infra.DetectExecMode() != infra.ExecModeSystem {
		logger.Warn("daemon is not running as root, enforcement will likely fail")
	}

	store, keys := openConfigStore(s, logger)
	logger.Info("config store resolved", zap.String("dir", store.Dir()))

	var activity domain.ActivityLog
	if s.ActivityLog {
		if log, err := openActivityLog(store.Dir(), keys); err != nil {
			logger.Warn("activity history disabled", zap.Error(err))
		} else {
			activity = log
			defer log.Close()
		}
	}

	enforcer := newEnforcer(s, store, logger)
	if activity != nil {
		enforcer.WithActivityLog(activity)
	}

	ctx, cancel := daemonContext(s, logger)
	defer cancel()

	srv := daemon.NewServer(daemon.ConfigFromSettings(s), enforcer, store, activity, logger)
	return srv.Run(ctx)
}

// daemonContext returns the daemon's root context. With ignore_signals the
// daemon only stops on a Shutdown request or SIGKILL.
func daemonContext(s *settings.Settings, logger *zap.Logger) (context.Context, context.CancelFunc) {
	if s.IgnoreSignals {
		signal.Ignore(syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		logger.Info("termination signals ignored, use the shutdown command to stop")
		return context.WithCancel(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("received shutdown signal")
	}()
	return ctx, stop
}

func openConfigStore(s *settings.Settings, logger *zap.Logger) (*infra.ConfigStoreImpl, *infra.MachineKeyProvider) {
	keys := infra.NewMachineKeyProvider()
	dir := infra.NewConfigDirResolver(s.ConfigDir).Resolve()
	return infra.NewConfigStore(dir, keys, logger), keys
}

func openActivityLog(dir string, keys domain.KeyProvider) (*infra.SQLCipherActivityLog, error) {
	key, err := keys.GetKey()
	if err != nil {
		return nil, err
	}
	return infra.NewActivityLog(dir, key)
}

func newEnforcer(s *settings.Settings, store domain.ConfigStore, logger *zap.Logger) *usecase.EnforcerImpl {
	hostsPath := s.HostsPath
	if hostsPath == "" {
		hostsPath = infra.DefaultHostsPath()
	}
	return usecase.NewEnforcer(
		store,
		infra.NewProcessManager(),
		infra.NewHostsFile(hostsPath, logger),
		infra.NewFirewallManager(logger),
		policy.NewRegistry(),
		logger,
	)
}

func newClient() (*ipc.Client, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(s.SocketPath), nil
}

func createLogger(s *settings.Settings) *zap.Logger {
	config := zap.NewProductionConfig()
	if s.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogPath), 0755); err == nil {
			config.OutputPaths = []string{s.LogPath}
			config.ErrorOutputPaths = []string{s.LogPath, "stderr"}
		}
	}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zapcore.ParseLevel(s.LogLevel); err == nil {
		config.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is used by commands that drive backends directly. Only
// warnings reach the terminal.
func cliLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("parentshield %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
