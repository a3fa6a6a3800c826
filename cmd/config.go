package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jobdash"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage jobdash configuration.

Running bare 'jobdash config' is the same as 'jobdash config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# jobdash configuration
# See: jobdash config show (for effective values and sources)

# State/data directory (default: ~/.config/jobdash)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/jobdash/jobdash.db)
# db_path: {{ .DBPath }}

# Backend API
api:
  # Host probed during port discovery
  host: "{{ .APIHost }}"

  # Inclusive port range probed in order (default: 8001-8010)
  port_start: {{ .APIPortStart }}
  port_end: {{ .APIPortEnd }}

  # Per-port probe timeout (default: 1s)
  probe_timeout: "{{ .APIProbeTimeout }}"

  # Fixed backend URL; skips discovery when set
  base_url: "{{ .APIBaseURL }}"

# Automation
automation:
  # Status poll interval (default: 5s)
  poll_interval: "{{ .PollInterval }}"

# Dashboard
dashboard:
  # Default analytics window: 7, 30, 90, 365 or all (default: 30)
  window: "{{ .DashboardWindow }}"

# Recent activity feed
activity:
  per_source: {{ .ActivityPerSource }}
  max: {{ .ActivityMax }}

# Local dashboard server
serve:
  port: {{ .ServePort }}
  cache_ttl: "{{ .ServeCacheTTL }}"

# Anthropic (optional, enables 'jobdash insights')
anthropic:
  # api_key: sk-ant-...   (or set ANTHROPIC_API_KEY)
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	APIHost           string
	APIPortStart      int
	APIPortEnd        int
	APIProbeTimeout   string
	APIBaseURL        string
	PollInterval      string
	DashboardWindow   string
	ActivityPerSource int
	ActivityMax       int
	ServePort         int
	ServeCacheTTL     string
	AnthropicModel    string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		APIHost:           viper.GetString("api.host"),
		APIPortStart:      viper.GetInt("api.port_start"),
		APIPortEnd:        viper.GetInt("api.port_end"),
		APIProbeTimeout:   viper.GetDuration("api.probe_timeout").String(),
		APIBaseURL:        viper.GetString("api.base_url"),
		PollInterval:      viper.GetDuration("automation.poll_interval").String(),
		DashboardWindow:   viper.GetString("dashboard.window"),
		ActivityPerSource: viper.GetInt("activity.per_source"),
		ActivityMax:       viper.GetInt("activity.max"),
		ServePort:         viper.GetInt("serve.port"),
		ServeCacheTTL:     viper.GetDuration("serve.cache_ttl").String(),
		AnthropicModel:    viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "JOBDASH_STATE_DIR"},
	{Key: "db_path", EnvVar: "JOBDASH_DB_PATH"},
	{Key: "api.host", EnvVar: "JOBDASH_API_HOST"},
	{Key: "api.port_start", EnvVar: "JOBDASH_API_PORT_START"},
	{Key: "api.port_end", EnvVar: "JOBDASH_API_PORT_END"},
	{Key: "api.probe_timeout", EnvVar: "JOBDASH_API_PROBE_TIMEOUT"},
	{Key: "api.base_url", EnvVar: "JOBDASH_API_BASE_URL"},
	{Key: "api.token", EnvVar: "JOBDASH_API_TOKEN"},
	{Key: "automation.poll_interval", EnvVar: "JOBDASH_AUTOMATION_POLL_INTERVAL"},
	{Key: "dashboard.window", EnvVar: "JOBDASH_DASHBOARD_WINDOW"},
	{Key: "activity.per_source", EnvVar: "JOBDASH_ACTIVITY_PER_SOURCE"},
	{Key: "activity.max", EnvVar: "JOBDASH_ACTIVITY_MAX"},
	{Key: "serve.port", EnvVar: "JOBDASH_SERVE_PORT"},
	{Key: "serve.cache_ttl", EnvVar: "JOBDASH_SERVE_CACHE_TTL"},
	{Key: "anthropic.api_key", EnvVar: "JOBDASH_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "JOBDASH_ANTHROPIC_MODEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if isSecretKey(k.Key) {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "token") || strings.HasSuffix(key, "api_key")
}

// maskSecret keeps the last four characters of a secret for recognition.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'jobdash config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
