package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/itdesk-io/itdesk/internal/config"
	"github.com/itdesk-io/itdesk/internal/models"
)

var (
	suMobile    string
	suEmail     string
	suFirstName string
	suLastName  string
	suPassword  string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create an administrator account",
	Long: `Create an active superuser in the Admins group.

Example:
  itdesk create-superuser --mobile 0733000001 --password 's3cure-pass' --first-name Ada`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if cfg.Database.InMemory() {
			return errors.New("database.driver is memory; accounts created here would not persist")
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.users.CreateUser(cmd.Context(), models.CreateUserRequest{
			Mobile:      suMobile,
			Email:       suEmail,
			FirstName:   suFirstName,
			LastName:    suLastName,
			Password:    suPassword,
			Groups:      []string{string(models.GroupAdmins)},
			IsSuperuser: true,
		})
		if err != nil {
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("invalid superuser: %s", verr.Error())
			}
			return err
		}
		log.Printf("AUDIT: superuser %s (id=%d) created from the command line", user.Mobile, user.ID)
		fmt.Printf("Superuser %s created.\n", user.Mobile)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&suMobile, "mobile", "", "Mobile number used to sign in")
	createSuperuserCmd.Flags().StringVar(&suEmail, "email", "", "Email address")
	createSuperuserCmd.Flags().StringVar(&suFirstName, "first-name", "", "First name")
	createSuperuserCmd.Flags().StringVar(&suLastName, "last-name", "", "Last name")
	createSuperuserCmd.Flags().StringVar(&suPassword, "password", "", "Password")
	_ = createSuperuserCmd.MarkFlagRequired("mobile")
	_ = createSuperuserCmd.MarkFlagRequired("password")
}
