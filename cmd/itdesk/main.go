package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/itdesk-io/itdesk/internal/config"
	"github.com/itdesk-io/itdesk/internal/version"
)

var (
	configDirFlag string
	envFileFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "itdesk",
	Short: "itdesk - IT help desk ticketing server",
	Long: `itdesk runs the help desk web server and provides maintenance commands
for its database and user accounts.

Configuration is read from default.yaml and config.yaml in the config directory,
then overridden by ITDESK_* environment variables (a .env file is loaded first).`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config", "./config", "Directory holding default.yaml and config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file loaded before configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the .env file, if any, and then the YAML configuration.
func loadConfig() error {
	if envFileFlag != "" {
		if err := godotenv.Load(envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFileFlag, err)
		}
	}
	if err := config.Load(configDirFlag); err != nil {
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("itdesk %s\n", version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
