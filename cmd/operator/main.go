package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/tokens"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "operator",
	Short:         "Egendata operator",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		db, err := database.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()

		return db.Migrate(ctx, direction)
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the configured PDS providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		registry, err := newPDSRegistry(cfg, logger)
		if err != nil {
			return err
		}
		for _, p := range registry.Providers() {
			fmt.Printf("%-10s %s\n", p.Name, p.Link)
		}
		return nil
	},
}

var keygenBits int

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new RSA private key for operator.private_key",
	RunE: func(cmd *cobra.Command, args []string) error {
		pem, err := tokens.GenerateKeyPEM(keygenBits)
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		fmt.Print(pem)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size")

	rootCmd.AddCommand(serveCmd, migrateCmd, providersCmd, keygenCmd)
}

// setup loads the configuration and the logger it configures.
func setup() (*config.Config, *logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Set Gin to release mode by default (can be overridden by GIN_MODE env var)
	if os.Getenv(gin.EnvGinMode) == "" {
		if cfg.Operator.IsUnsafe() {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	return cfg, logger, nil
}
