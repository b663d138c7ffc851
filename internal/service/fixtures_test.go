package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/render"
	"github.com/itdesk-io/itdesk/internal/repository"
	"github.com/itdesk-io/itdesk/internal/repository/memory"
	"github.com/itdesk-io/itdesk/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repos     *repository.Repositories
	clock     *testClock
	policy    *auth.Policy
	hasher    *auth.PasswordHasher
	files     *storage.Service
	tickets   *TicketService
	dashboard *DashboardService
	users     *UserService

	customer *models.User
	agentA   *models.User
	agentB   *models.User
	admin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		repos:  memory.NewStore().Repositories(),
		clock:  newTestClock(),
		policy: auth.NewPolicy(),
		hasher: auth.NewPasswordHasher(bcrypt.MinCost),
		files:  storage.NewService(backend, storage.DefaultUploadPolicy()),
	}
	f.tickets = NewTicketService(f.repos, f.policy, f.files, render.NewMarkdown()).WithClock(f.clock.Now)
	f.dashboard = NewDashboardService(f.repos.Tickets, f.policy).WithClock(f.clock.Now)
	f.users = NewUserService(f.repos.Users, f.hasher, f.policy)

	f.customer = f.seedUser(t, "0711000001", "Carol", "Customer", models.GroupCustomers)
	f.agentA = f.seedUser(t, "0722000001", "Alice", "Agent", models.GroupAgents)
	f.agentB = f.seedUser(t, "0722000002", "Bob", "Agent", models.GroupAgents)
	f.admin = f.seedUser(t, "0733000001", "Ada", "Admin", models.GroupAdmins)
	return f
}

func (f *fixture) seedUser(t *testing.T, mobile, first, last string, groups ...models.Group) *models.User {
	t.Helper()
	hash, err := f.hasher.HashPassword("correct-horse")
	require.NoError(t, err)
	u := &models.User{
		Mobile:       mobile,
		FirstName:    first,
		LastName:     last,
		PasswordHash: hash,
		IsActive:     true,
		Groups:       groups,
	}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) createTicket(t *testing.T, title string) *models.Ticket {
	t.Helper()
	ticket, outcome, err := f.tickets.CreateTicket(context.Background(), f.customer,
		models.CreateTicketRequest{Title: title, Description: title + " details"}, nil)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	f.clock.Advance(time.Minute)
	return ticket
}

func (f *fixture) reload(t *testing.T, id uint) *models.Ticket {
	t.Helper()
	ticket, err := f.repos.Tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func ptr[T any](v T) *T { return &v }
