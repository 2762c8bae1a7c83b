package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/evidentia/internal/logging"
	"github.com/ppiankov/evidentia/internal/model"
)

// Version is overridden at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile      string
	verbose      bool
	dataRootFlag string

	cfg    *model.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "evidentia",
	Short: "Evidentia - evidence to knowledge aggregation for recorded documents",
	Long: `Evidentia turns repeated, confidence-scored extraction results from
recorded documents into a deduplicated, provenance-tracked knowledge base.

Each document is transcribed and run through external extraction agents.
Their evidence is rolled up across the whole corpus, knowledge records are
derived from it, and organization spellings are clustered into identities.

Nothing becomes fact on its own: knowledge records stay candidates until
you confirm or ignore them.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Log.Level
		if verbose {
			level = zapcore.DebugLevel.String()
		}
		logger, err = logging.New(level, cfg.Log.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Evidentia.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("evidentia %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.evidentia/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dataRootFlag, "data-root", "", "data root directory (overrides data_root)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("data_root", rootCmd.PersistentFlags().Lookup("data-root"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".evidentia"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// Read in environment variables that match EVIDENTIA_*, e.g. EVIDENTIA_LLM_PROVIDER
	viper.SetEnvPrefix("EVIDENTIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy"} {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults exposes every default as a viper key so env vars can override nested values
func registerDefaults(defaults *model.Config) error {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
	return nil
}

// loadConfig merges defaults, config file, env vars and flags into one Config
func loadConfig() (*model.Config, error) {
	loaded := model.DefaultConfig()
	if err := viper.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	// Provider keys follow the usual SDK environment variables when not configured
	if loaded.LLM.APIKey == "" {
		switch strings.ToLower(loaded.LLM.Provider) {
		case "openai":
			loaded.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			loaded.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if loaded.LLM.BaseURL == "" && strings.ToLower(loaded.LLM.Provider) == "ollama" {
		loaded.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if loaded.DataRoot == "" {
		return nil, fmt.Errorf("data_root is empty")
	}
	abs, err := filepath.Abs(loaded.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	loaded.DataRoot = abs
	return loaded, nil
}
