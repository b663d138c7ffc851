package main

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/itdesk-io/itdesk/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if cfg.Database.InMemory() {
			return errors.New("database.driver is memory; nothing to migrate")
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		log.Println("Database is up to date")
		return nil
	},
}
