package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/jobdash/internal/activity"
	"github.com/joescharf/jobdash/internal/app"
	"github.com/joescharf/jobdash/internal/llm"
	"github.com/joescharf/jobdash/internal/output"
	"github.com/joescharf/jobdash/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "jobdash",
	Short: "Job-hunting dashboard for the LinkedIn automation backend",
	Long: `jobdash is the client for a local LinkedIn job-hunting backend.

It finds the backend on localhost, keeps a browsing session alive, shows
applied and saved jobs with analytics, and controls the automation engine
behind a setup checklist.

Running bare 'jobdash' shows the dashboard.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return dashboardRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/jobdash/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "Backend base URL (skips port discovery)")
	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	// A local .env fills in keys such as ANTHROPIC_API_KEY; real env wins.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("JOBDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultConfigDir, _ := configDirFunc()
	setDefaults(defaultConfigDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers a default for every config key.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "jobdash.db"))
	viper.SetDefault("api.host", "localhost")
	viper.SetDefault("api.port_start", 8001)
	viper.SetDefault("api.port_end", 8010)
	viper.SetDefault("api.probe_timeout", "1s")
	viper.SetDefault("api.base_url", "")
	viper.SetDefault("api.token", "")
	viper.SetDefault("automation.poll_interval", "5s")
	viper.SetDefault("dashboard.window", "30")
	viper.SetDefault("activity.per_source", activity.DefaultOptions().PerSource)
	viper.SetDefault("activity.max", activity.DefaultOptions().Max)
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.cache_ttl", "30s")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily; config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newLogger returns the background logger: warnings by default, debug with -v.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// appConfig builds the app configuration from viper.
func appConfig() app.Config {
	cfg := app.DefaultConfig()
	cfg.Host = viper.GetString("api.host")
	cfg.PortStart = viper.GetInt("api.port_start")
	cfg.PortEnd = viper.GetInt("api.port_end")
	cfg.ProbeTimeout = viper.GetDuration("api.probe_timeout")
	cfg.BaseURL = viper.GetString("api.base_url")
	cfg.Token = viper.GetString("api.token")
	cfg.PollInterval = viper.GetDuration("automation.poll_interval")
	cfg.Activity = activity.Options{
		PerSource: viper.GetInt("activity.per_source"),
		Max:       viper.GetInt("activity.max"),
	}
	cfg.Logger = newLogger()
	return cfg
}

// newApp opens storage and locates the backend. A missing backend is
// reported as a warning; the app still works in disconnected mode.
func newApp(ctx context.Context) (*app.App, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	a := app.New(appConfig(), s)
	if err := a.Connect(ctx); err != nil {
		if !asJSON {
			ui.Warning("Backend not found (%v); showing disconnected view", err)
		}
	} else {
		ui.VerboseLog("Connected to %s", a.BaseURL())
	}
	return a, nil
}

// requireApp is newApp for commands that cannot work disconnected.
func requireApp(ctx context.Context) (*app.App, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if !a.Connected() {
		return nil, fmt.Errorf("%w: start the backend or set --api-url", app.ErrDisconnected)
	}
	return a, nil
}

// newOfflineApp builds an app over s without probing for the backend.
func newOfflineApp(s store.Store) *app.App {
	return app.New(appConfig(), s)
}
