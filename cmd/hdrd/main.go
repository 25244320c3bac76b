// Package main is the CLI entry point for hdrd.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hdrd/internal/autostart"
	"hdrd/internal/config"
	"hdrd/internal/controller"
	"hdrd/internal/domain"
	"hdrd/internal/hdr"
	"hdrd/internal/identity"
	"hdrd/internal/instance"
	"hdrd/internal/monitor"
	"hdrd/internal/updater"
	"hdrd/internal/watchlist"
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
	Use:   "hdrd",
	Short: "Automatic HDR switching for monitored applications",
	Long: `hdrd is a daemon that turns display HDR on while any of your
configured applications (games, video editors) is running and turns it
back off when the last one exits. HDR changes you make yourself in
Windows settings are respected, never fought.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Starts process monitoring, display watching and HDR coordination.
Intended to be launched at logon (see 'hdrd autostart'); logs go to the
configuration directory.`,
	RunE: runDaemon,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show display and configuration status",
	Long:  `Queries the current HDR state of every display and summarizes the configuration.`,
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored applications",
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a monitored application",
	Long: `Adds an application to the watch list. Use --process for classic
desktop applications (executable name, extension optional) or
--package-family for Store applications.`,
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <id-or-name>",
	Short: "Remove a monitored application",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var autostartCmd = &cobra.Command{
	Use:       "autostart on|off",
	Short:     "Enable or disable launch at logon",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runAutostart,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer release",
	RunE:  runUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath  string
	addName     string
	addProcess  string
	addPackage  string
	addDisabled bool
	jsonOutput  bool
	runDegraded bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (default: per-user config dir)")

	addCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to process/package name)")
	addCmd.Flags().StringVar(&addProcess, "process", "", "Executable name of a desktop application")
	addCmd.Flags().StringVar(&addPackage, "package-family", "", "Package family name of a Store application")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Add the entry without enabling monitoring")

	runCmd.Flags().BoolVar(&runDegraded, "degraded", false, "Keep running without HDR control if display setup fails")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	release, err := instance.Acquire()
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			fmt.Println("hdrd is already running")
			return nil
		}
		return err
	}
	defer release()

	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}

	logger := createLogger(filepath.Dir(cfgPath))
	defer func() { _ = logger.Sync() }()
	logger.Info("hdrd starting",
		zap.String("version", Version),
		zap.String("config", cfgPath))

	manager := config.NewManager(cfgPath, logger)
	cfg := manager.Current()

	registry := watchlist.NewRegistry()
	registry.Update(cfg.EnabledApps())

	// Display control is the daemon's whole purpose; failing to set it
	// up (layout mismatch, enumeration failure) is fatal unless the
	// user explicitly asked for degraded operation.
	var display domain.DisplayController
	display, err = hdr.NewController(logger)
	if err != nil {
		if !runDegraded {
			logger.Error("display controller init failed", zap.Error(err))
			return err
		}
		logger.Warn("running degraded: monitoring without HDR control", zap.Error(err))
		display = hdr.NoopController{}
	}

	procEvents := make(chan domain.ProcessEvent, 64)
	hdrEvents := make(chan domain.HdrStateEvent, 16)

	mon := monitor.New(
		monitor.NewProcessLister(),
		identity.NewResolver(logger),
		registry,
		procEvents,
		cfg.PollInterval(),
		logger,
	)

	watcher := hdr.NewWatcher(display, hdrEvents, logger)
	watcher.StartNotificationPump()

	publisher := domain.StatePublisherFunc(func(s domain.AppState) {
		logger.Info("state",
			zap.Bool("hdrEnabled", s.HdrEnabled),
			zap.Strings("activeApps", s.ActiveApps),
			zap.String("event", s.LastEvent))
		if s.NoHdrAtStartup {
			logger.Warn("no HDR-capable display; monitoring continues until one appears")
		}
		if s.HdrBecameAvailable {
			logger.Info("HDR-capable display connected")
		}
	})
	coord := controller.New(display, registry, procEvents, hdrEvents, publisher, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := manager.Watch(ctx, func(cfg *config.Config) {
			registry.Update(cfg.EnabledApps())
		}); err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		}
	}()
	go mon.Run(ctx)
	go watcher.Run(ctx)

	coord.Run(ctx)
	logger.Info("hdrd stopped")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	manager := config.NewManager(cfgPath, zap.NewNop())
	cfg := manager.Current()

	fmt.Println("=== hdrd Status ===")
	fmt.Printf("Config: %s\n", cfgPath)
	fmt.Printf("Poll interval: %s\n", cfg.PollInterval())
	fmt.Printf("Monitored apps: %d (%d enabled)\n", len(cfg.Apps), len(cfg.EnabledApps()))

	if on, err := autostart.Enabled(); err == nil {
		fmt.Printf("Autostart: %t\n", on)
	}

	display, err := hdr.NewController(zap.NewNop())
	if err != nil {
		fmt.Printf("Displays: unavailable (%v)\n", err)
		return nil
	}
	targets := display.Targets()
	fmt.Printf("Displays: %d (%d HDR-capable)\n", len(targets), display.CapableCount())
	for _, t := range targets {
		state := "no HDR support"
		if t.SupportsHDR {
			state = "HDR off"
			if on, err := display.IsEnabled(t); err == nil && on {
				state = "HDR on"
			}
		}
		fmt.Printf("  - target %d: %s\n", t.TargetID, state)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg := config.NewManager(cfgPath, zap.NewNop()).Current()

	if len(cfg.Apps) == 0 {
		fmt.Println("No monitored applications. Add one with 'hdrd add'.")
		return nil
	}

	fmt.Println("=== Monitored Applications ===")
	for _, app := range cfg.Apps {
		enabled := "enabled"
		if !app.Enabled {
			enabled = "disabled"
		}
		fmt.Printf("\n%s (%s)\n", app.DisplayName, enabled)
		fmt.Printf("  id: %s\n", app.ID)
		if app.Kind == domain.KindUWP {
			fmt.Printf("  package family: %s\n", app.PackageFamilyName)
		} else {
			fmt.Printf("  process: %s\n", app.ProcessName)
		}
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	if (addProcess == "") == (addPackage == "") {
		return fmt.Errorf("exactly one of --process or --package-family is required")
	}

	app := domain.MonitoredApp{Enabled: !addDisabled}
	if addPackage != "" {
		app.Kind = domain.KindUWP
		app.PackageFamilyName = addPackage
		app.DisplayName = addPackage
	} else {
		app.Kind = domain.KindWin32
		app.ProcessName = identity.Stem(addProcess)
		app.DisplayName = addProcess
	}
	if addName != "" {
		app.DisplayName = addName
	}

	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	manager := config.NewManager(cfgPath, zap.NewNop())
	added, err := manager.AddApp(app)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (id %s)\n", added.DisplayName, added.ID)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	manager := config.NewManager(cfgPath, zap.NewNop())

	needle := args[0]
	for _, app := range manager.Current().Apps {
		if app.ID.String() == needle || strings.EqualFold(app.DisplayName, needle) {
			if err := manager.RemoveApp(app.ID); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", app.DisplayName)
			return nil
		}
	}
	return fmt.Errorf("no monitored app matches %q", needle)
}

func runAutostart(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "on":
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable path: %w", err)
		}
		if err := autostart.Enable(exe); err != nil {
			return err
		}
		fmt.Println("hdrd will start at logon")
	case "off":
		if err := autostart.Disable(); err != nil {
			return err
		}
		fmt.Println("Autostart disabled")
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	checker := updater.NewChecker(Version, zap.NewNop())
	upd, err := checker.Check(cmd.Context())
	if err != nil {
		return err
	}
	if upd.Newer {
		fmt.Printf("New release available: %s\n%s\n", upd.Version, upd.URL)
	} else {
		fmt.Printf("Up to date (%s)\n", Version)
	}
	return nil
}

func createLogger(dir string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout", filepath.Join(dir, "hdrd.log")}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	_ = os.MkdirAll(dir, 0o755)
	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("hdrd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
