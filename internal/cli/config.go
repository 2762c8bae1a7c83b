package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

const precedence = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (EVIDENTIA_*, OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL)
  3. Config file (~/.evidentia/config.yaml)
  4. Built-in defaults
`

const configFooter = `
# Extractors: a configured command wins over the llm provider.
# Each command reads a JSON request on stdin and writes JSON to stdout, e.g.
#   extractors:
#     entities: ["python3", "extract_entities.py"]
#
# API keys are best kept in the environment:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`

var initForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Evidentia configuration",
	Long:  "Inspect and create Evidentia configuration files.\n\n" + precedence,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "# config file: %s\n", used)
		} else {
			fmt.Fprintln(os.Stderr, "# no config file found, showing defaults and environment")
		}

		out, err := renderConfig(redacted(cfg))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the config file is read from",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(used)
			return nil
		}
		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.evidentia/config.yaml (or the --config path) holding every option at its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			var err error
			if path, err = defaultConfigPath(); err != nil {
				return err
			}
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		content, err := defaultConfigFile()
		if err != nil {
			return err
		}
		if err := store.WriteFile(path, content); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", path)
		fmt.Println("  View it with: evidentia config show")
		return nil
	},
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".evidentia", "config.yaml"), nil
}

// redacted returns a copy of c with secrets masked
func redacted(c *model.Config) *model.Config {
	shown := *c
	if shown.LLM.APIKey != "" {
		shown.LLM.APIKey = "********"
	}
	return &shown
}

func renderConfig(c *model.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// defaultConfigFile renders the commented default config file
func defaultConfigFile() ([]byte, error) {
	body, err := renderConfig(model.DefaultConfig())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("# Evidentia configuration\n#\n")
	for _, line := range bytes.SplitAfter([]byte(precedence), []byte("\n")) {
		if len(line) > 0 {
			buf.WriteString("# ")
			buf.Write(line)
		}
	}
	buf.WriteString("\n")
	buf.Write(body)
	buf.WriteString(configFooter)
	return buf.Bytes(), nil
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
}
