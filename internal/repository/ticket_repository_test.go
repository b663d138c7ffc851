package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itdesk-io/itdesk/internal/models"
)

var ticketRowColumns = []string{
	"id", "customer_id", "agent_id", "title", "description", "status", "priority",
	"created_at", "updated_at", "customer_mobile",
}

const ticketSelect = "SELECT t.id, t.customer_id, t.agent_id, t.title, t.description, t.status, t.priority, " +
	"t.created_at, t.updated_at, c.mobile AS customer_mobile FROM tickets t JOIN users c ON c.id = t.customer_id"

func TestTicketRepository_GetByID(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(ticketSelect + " WHERE t.id = $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).
			AddRow(5, 1, 3, "Printer broken", "Paper jam", "IN_PROGRESS", "HIGH", at, at, "0711"))

	tk, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, tk.Status)
	assert.Equal(t, models.PriorityHigh, tk.Priority)
	require.NotNil(t, tk.AgentID)
	assert.Equal(t, uint(3), *tk.AgentID)
	assert.Equal(t, "0711", tk.CustomerMobile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_GetByIDNotFound(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	mock.ExpectQuery("FROM tickets t").WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	_, err := repo.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTicketRepository_QueryBuildsFilters(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	now := time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)
	agentID := uint(9)

	expected := ticketSelect +
		" WHERE t.agent_id = $1 AND t.status <> $2" +
		" AND (LOWER(t.title) LIKE $3 ESCAPE '!' OR LOWER(t.description) LIKE $4 ESCAPE '!'" +
		" OR LOWER(c.mobile) LIKE $5 ESCAPE '!' OR CAST(t.id AS TEXT) LIKE $6 ESCAPE '!')" +
		" AND t.status = $7 AND t.priority = $8 AND t.created_at >= $9" +
		" ORDER BY t.created_at DESC, t.id DESC"

	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs(9, "RESOLVED", "%printer%", "%printer%", "%printer%", "%printer%", "OPEN", "HIGH",
			time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	_, err := repo.Query(context.Background(), models.TicketQuery{
		Scope: models.TicketScope{AgentID: &agentID, ExcludeStatus: models.StatusResolved},
		Filter: models.TicketFilter{
			Search: "Printer", Status: models.StatusOpen, Priority: models.PriorityHigh, DateRange: models.DateRangeWeek,
		},
		Now: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_QueryResolvedBucket(t *testing.T) {
	qb, mock := newMockQB(t, "mysql")
	repo := NewTicketRepository(qb)

	mock.ExpectQuery(regexp.QuoteMeta(ticketSelect+" WHERE t.status = ? ORDER BY t.updated_at DESC, t.id DESC LIMIT ?")).
		WithArgs("RESOLVED", 10).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	_, err := repo.Query(context.Background(), models.TicketQuery{
		Scope: models.TicketScope{Status: models.StatusResolved, OrderBy: models.OrderUpdatedDesc, Limit: 10},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_UpdateNeverWritesCustomer(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	at := time.Now().UTC()
	agent := uint(3)

	mock.ExpectExec(`UPDATE tickets SET\s+agent_id = \$1, title = \$2, description = \$3, status = \$4, priority = \$5, updated_at = \$6\s+WHERE id = \$7`).
		WithArgs(agent, "t", "d", "IN_PROGRESS", "MEDIUM", at, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Ticket{
		ID: 5, CustomerID: 77, AgentID: &agent, Title: "t", Description: "d",
		Status: models.StatusInProgress, Priority: models.PriorityMedium, UpdatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_TouchIsMonotonic(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET updated_at = $1 WHERE id = $2 AND updated_at < $3")).
		WithArgs(at, 5, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Touch(context.Background(), 5, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_AssignOnlyWhenUnassigned(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewTicketRepository(qb)
	at := time.Now().UTC()

	query := `UPDATE tickets SET\s+agent_id = \$1,\s+status = CASE WHEN status = \$2 THEN \$3 ELSE status END,` +
		`\s+updated_at = CASE WHEN updated_at < \$4 THEN \$5 ELSE updated_at END\s+WHERE id = \$6 AND agent_id IS NULL`
	mock.ExpectExec(query).
		WithArgs(3, "OPEN", "IN_PROGRESS", at, at, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs(4, "OPEN", "IN_PROGRESS", at, at, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Assign(context.Background(), 5, 3, at)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Assign(context.Background(), 5, 4, at)
	require.NoError(t, err)
	assert.False(t, claimed, "a second agent matches no row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_DeleteMissing(t *testing.T) {
	qb, mock := newMockQB(t, "sqlite3")
	repo := NewTicketRepository(qb)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 5), models.ErrNotFound)
}

func TestMessageRepository_CreateAndList(t *testing.T) {
	qb, mock := newMockQB(t, "postgres")
	repo := NewMessageRepository(qb)
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages (ticket_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs(5, 1, "hello", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, ticket_id, sender_id, content, created_at FROM messages WHERE ticket_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "sender_id", "content", "created_at"}).
			AddRow(40, 5, 1, "hello", at))

	msg := &models.Message{TicketID: 5, SenderID: 1, Content: "hello", CreatedAt: at}
	require.NoError(t, repo.Create(context.Background(), msg))
	assert.Equal(t, uint(40), msg.ID)

	list, err := repo.ListByTicket(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hello", list[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachmentRepository_Create(t *testing.T) {
	qb, mock := newMockQB(t, "sqlite3")
	repo := NewAttachmentRepository(qb)

	mock.ExpectExec("INSERT INTO attachments").WillReturnResult(sqlmock.NewResult(8, 1))

	a := &models.Attachment{TicketID: 5, StoragePath: "tickets/5/x.png", FileName: "x.png", Size: 10, UploadedBy: 1}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, uint(8), a.ID)
	assert.False(t, a.UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
