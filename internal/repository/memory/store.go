package memory

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// Store holds every in-memory table behind one lock so a ticket delete can cascade
// atomically to its messages, comments and attachments.
type Store struct {
	mu          sync.RWMutex
	users       map[uint]*models.User
	tickets     map[uint]*models.Ticket
	messages    map[uint]*models.Message
	comments    map[uint]*models.InternalComment
	attachments map[uint]*models.Attachment

	nextUserID       uint
	nextTicketID     uint
	nextMessageID    uint
	nextCommentID    uint
	nextAttachmentID uint
}

func NewStore() *Store {
	return &Store{
		users:            make(map[uint]*models.User),
		tickets:          make(map[uint]*models.Ticket),
		messages:         make(map[uint]*models.Message),
		comments:         make(map[uint]*models.InternalComment),
		attachments:      make(map[uint]*models.Attachment),
		nextUserID:       1,
		nextTicketID:     1,
		nextMessageID:    1,
		nextCommentID:    1,
		nextAttachmentID: 1,
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:       &UserRepository{s: s},
		Tickets:     &TicketRepository{s: s},
		Messages:    &MessageRepository{s: s},
		Comments:    &InternalCommentRepository{s: s},
		Attachments: &AttachmentRepository{s: s},
	}
}

func fold(s string) string {
	return database.LowerText(s)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), needle)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
