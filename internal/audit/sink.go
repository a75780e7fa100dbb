package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

const savepointName = "audit_event"

// Event is one explicit audit emission. Details must be JSON-serializable.
type Event struct {
	Action     enums.AuditAction
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Details    map[string]any
	IPAddress  string
}

// Sink records audit events. Record never returns an error: failures are
// logged and dropped so the calling transition still commits.
type Sink interface {
	Record(ctx context.Context, tx *gorm.DB, event Event)
}

type clientIPKey struct{}

// WithClientIP stores the caller address so sinks can attach it to events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, strings.TrimSpace(ip))
}

// ClientIP returns the caller address stored on ctx.
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// GormSink writes audit rows through gorm.
type GormSink struct {
	db   *gorm.DB
	logg *logger.Logger
	now  func() time.Time
}

// NewSink builds a sink writing to db when no transaction is supplied.
func NewSink(db *gorm.DB, logg *logger.Logger) *GormSink {
	return &GormSink{db: db, logg: logg, now: time.Now}
}

// Record writes the event inside tx under a savepoint, or on its own
// connection when tx is nil.
func (s *GormSink) Record(ctx context.Context, tx *gorm.DB, event Event) {
	if s == nil {
		return
	}
	row, err := s.toModel(ctx, event)
	if err != nil {
		s.logFailure(ctx, event, err)
		return
	}

	if tx == nil {
		if s.db == nil {
			return
		}
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			s.logFailure(ctx, event, err)
		}
		return
	}

	if err := tx.SavePoint(savepointName).Error; err != nil {
		s.logFailure(ctx, event, err)
		return
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			s.logFailure(ctx, event, rbErr)
		}
		s.logFailure(ctx, event, err)
	}
}

func (s *GormSink) toModel(ctx context.Context, event Event) (*models.AuditEvent, error) {
	if !event.Action.IsValid() {
		return nil, errInvalidAction(event.Action)
	}
	row := &models.AuditEvent{
		ID:         uuid.New(),
		Action:     event.Action,
		EntityType: event.EntityType,
		ActorID:    event.ActorID,
		CreatedAt:  s.now().UTC(),
	}
	if event.EntityID != uuid.Nil {
		id := event.EntityID
		row.EntityID = &id
	}
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return nil, err
		}
		row.Details = raw
	}
	ip := event.IPAddress
	if ip == "" {
		ip = ClientIP(ctx)
	}
	if ip != "" {
		row.IPAddress = &ip
	}
	return row, nil
}

func (s *GormSink) logFailure(ctx context.Context, event Event, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"audit_action": string(event.Action),
		"entity_type":  event.EntityType,
		"entity_id":    event.EntityID.String(),
	})
	s.logg.Error(logCtx, "audit record dropped", err)
}

type errInvalidAction enums.AuditAction

func (e errInvalidAction) Error() string {
	return "invalid audit action " + string(e)
}

// Actor returns a pointer suitable for Event.ActorID; uuid.Nil yields nil for system actions.
func Actor(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
