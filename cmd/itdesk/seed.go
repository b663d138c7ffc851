package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itdesk-io/itdesk/internal/config"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/service"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Users   []models.CreateUserRequest `yaml:"users"`
	Tickets []seedTicket               `yaml:"tickets"`
}

type seedTicket struct {
	Customer    string `yaml:"customer"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
}

func parseSeedFile(data []byte) (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	for i, t := range f.Tickets {
		if t.Customer == "" {
			return nil, fmt.Errorf("invalid seed file: ticket %d has no customer", i+1)
		}
	}
	return &f, nil
}

var seedFileFlag string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users and tickets from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(seedFileFlag)
		if err != nil {
			return err
		}
		f, err := parseSeedFile(data)
		if err != nil {
			return err
		}
		cfg := config.Get()
		if cfg.Database.InMemory() {
			return errors.New("database.driver is memory; seeded data would not persist")
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		users, tickets, err := applySeed(cmd.Context(), a.users, a.tickets, f)
		log.Printf("Seeded %d user(s) and %d ticket(s)", users, tickets)
		return err
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFileFlag, "file", "seed.yaml", "Seed file to load")
}

// applySeed creates the users first so tickets can reference them. Existing accounts
// are skipped.
func applySeed(ctx context.Context, users *service.UserService, tickets *service.TicketService, f *seedFile) (int, int, error) {
	created := 0
	for _, req := range f.Users {
		_, err := users.CreateUser(ctx, req)
		var conflict *models.ConflictError
		switch {
		case errors.As(err, &conflict):
			log.Printf("Skipping user %s: %s", req.Mobile, conflict.Error())
		case err != nil:
			return created, 0, fmt.Errorf("user %s: %w", req.Mobile, err)
		default:
			created++
		}
	}

	opened := 0
	for _, t := range f.Tickets {
		customer, err := users.GetByMobile(ctx, t.Customer)
		if err != nil {
			return created, opened, fmt.Errorf("ticket %q: customer %s: %w", t.Title, t.Customer, err)
		}
		_, outcome, err := tickets.CreateTicket(ctx, customer, models.CreateTicketRequest{
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
		}, nil)
		if err != nil {
			return created, opened, fmt.Errorf("ticket %q: %w", t.Title, err)
		}
		if outcome != nil && outcome.Level == models.FlashError {
			return created, opened, fmt.Errorf("ticket %q: %s", t.Title, outcome.Message)
		}
		opened++
	}
	return created, opened, nil
}
