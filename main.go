package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"guardians/internal/config"
	"guardians/internal/logging"
	"guardians/internal/middleware"
	"guardians/internal/services"
)

var (
	version    = "0.1.0"
	cfgFile    string
	serverName string
	keyFile    string
)

var rootCmd = &cobra.Command{
	Use:   "guardians",
	Short: "Guardians process monitor",
	Long:  `Guardians - a live process monitor with filtering, sorting and process control over HTTP and WebSocket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitor server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate an access token for the WebSocket and action endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !middleware.NewInputValidator().ValidateServerName(serverName) {
			return fmt.Errorf("invalid server name %q", serverName)
		}
		auth, err := services.NewAuthService(cfg.Auth.SecretKey, keyFile, cfg.TokenExpiry())
		if err != nil {
			return err
		}
		token, expiry, err := auth.GenerateToken(serverName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token:   %s\nexpires: %s\nurl:     ws://%s/ws?token=%s\n",
			token, expiry.Format("2006-01-02 15:04:05"), cfg.ListenAddr, token)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.SecretKey != "" {
			cfg.Auth.SecretKey = "<redacted>"
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Guardians v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/guardians/guardians.yaml)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "secret key file used when auth.secret_key is unset (default ~/.guardians-secret-key)")
	tokenCmd.Flags().StringVar(&serverName, "server-name", "guardians-agent", "name embedded in the token")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration, then sets up logging.
// Validation problems are logged and clamped, never fatal.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	cfg.Validate()
	return cfg, nil
}
