package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itdesk-io/itdesk/internal/models"
)

func TestFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		req  any
		want map[string]string
	}{
		{
			"ticket form",
			models.CreateTicketRequest{Title: strings.Repeat("é", 201), Priority: "whenever"},
			map[string]string{
				"title":       "Ensure this value has at most 200 characters.",
				"description": "This field is required.",
				"priority":    "Select a valid choice.",
			},
		},
		{
			"registration form",
			models.RegisterRequest{Email: "not-an-email", Password1: "one", Password2: "two"},
			map[string]string{
				"mobile":    "This field is required.",
				"email":     "Enter a valid email address.",
				"password2": "The two password fields didn't match.",
			},
		},
		{
			"user form reports json names",
			models.CreateUserRequest{Mobile: "0722000010", Password: "x", Groups: []string{"Agents", "Wizards"}, FirstName: strings.Repeat("a", 151)},
			map[string]string{
				"groups":     "Select a valid choice.",
				"first_name": "Ensure this value has at most 150 characters.",
			},
		},
		{
			"status choice",
			models.UpdateTicketRequest{Status: "REOPENED"},
			map[string]string{"status": "Select a valid choice."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr, ok := FieldErrors(validate.Struct(tt.req))
			require.True(t, ok)
			assert.Equal(t, tt.want, verr.Fields)
		})
	}

	t.Run("valid input", func(t *testing.T) {
		assert.NoError(t, validate.Struct(models.CreateTicketRequest{Title: "Printer broken", Description: "Jam", Priority: "high"}))
		assert.NoError(t, validate.Struct(models.UpdateTicketRequest{Status: "IN_PROGRESS"}))
		assert.NoError(t, validate.Struct(models.RegisterRequest{Mobile: "0711", Email: "", Password1: "a", Password2: "a"}))
	})

	t.Run("other errors are not field errors", func(t *testing.T) {
		_, ok := FieldErrors(errors.New("boom"))
		assert.False(t, ok)
	})
}

func TestCreateUser_BindingRulesApplyOutsideHTTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.CreateUser(ctx, models.CreateUserRequest{
		Mobile:   "0722000011",
		Email:    "ops at corp",
		Password: "agent-pass-1",
		Groups:   []string{" Agents ", "Support"},
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"email":  "Enter a valid email address.",
		"groups": "Select a valid choice.",
	}, verr.Fields)

	// Blank optional email is fine and stored as NULL.
	user, err := f.users.CreateUser(ctx, models.CreateUserRequest{
		Mobile: "0722000011", Email: "  ", Password: "agent-pass-1", Groups: []string{" Agents "},
	})
	require.NoError(t, err)
	assert.Nil(t, user.Email)
	assert.Equal(t, []models.Group{models.GroupAgents}, user.Groups)
}

func TestCreateTicket_TitleLengthCountsCharacters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, outcome, err := f.tickets.CreateTicket(ctx, f.customer,
		models.CreateTicketRequest{Title: strings.Repeat("é", 200), Description: "accented"}, nil)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	assert.Equal(t, models.PriorityMedium, ticket.Priority)

	_, _, err = f.tickets.CreateTicket(ctx, f.customer,
		models.CreateTicketRequest{Title: strings.Repeat("é", 201), Description: "accented"}, nil)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Ensure this value has at most 200 characters.", verr.Fields["title"])
}

func TestUpdateTicket_InvalidChoiceChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "VPN drops")
	_, err := f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	before := f.reload(t, ticket.ID)

	_, _, err = f.tickets.UpdateTicket(ctx, f.agentA, ticket.ID, models.UpdateTicketRequest{Status: "bogus", Priority: "HIGH"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"status": "Select a valid choice."}, verr.Fields)

	after := f.reload(t, ticket.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Priority, after.Priority)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}
