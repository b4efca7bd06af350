// Package cli wires the validation stack behind the prahari command tree.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prahari-health/prahari/internal/model"
)

var (
	cfgFile      string
	keywordsFile string
	verbose      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prahari",
	Short: "Prahari - safety validation for health assistant answers",
	Long: `Prahari (प्रहरी, "watchman") guards the answers a health assistant
sends to its users.

Every answer passes a deterministic rule ladder that catches emergencies
and dangerous medication advice, and optionally a semantic stage that
checks extracted claims against a curated medical knowledge base. Risky
answers are escalated to human experts and every reply carries a
risk-appropriate disclaimer.

Prahari decides how an answer may be delivered. It never generates
medical advice of its own.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("prahari v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.prahari/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&keywordsFile, "keywords", "", "keywords file overriding the built-in tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the config file and PRAHARI_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.prahari")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PRAHARI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Secrets and connection strings come from the environment more often
	// than from the file
	for _, key := range []string{
		"database.dsn",
		"llm.provider", "llm.model", "llm.api_key", "llm.base_url",
		"logging.level", "logging.json",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if keywordsFile != "" {
		if err := model.LoadKeywordsFile(keywordsFile, &cfg.Keywords); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}
