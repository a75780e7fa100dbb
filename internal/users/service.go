package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
	"github.com/angelmondragon/remitflow-backend/pkg/security"
)

const temporaryPasswordLength = 12

// Service manages back-office accounts.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateUserInput) (*CreateUserResult, error)
	Toggle(ctx context.Context, actor auth.Actor, userID uuid.UUID) (*UserDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, data map[string]any) error
}

// ServiceParams bundles the user service dependencies.
type ServiceParams struct {
	DB        txRunner
	Repo      *Repository
	Audit     audit.Sink
	Notifier  userNotifier
	Passwords config.PasswordConfig
	Sessions  sessionRevoker
	Logger    *logger.Logger
}

// sessionRevoker ends every open session of a user.
type sessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	db        txRunner
	repo      *Repository
	audit     audit.Sink
	notifier  userNotifier
	passwords config.PasswordConfig
	sessions  sessionRevoker
	logg      *logger.Logger
}

// ListParams filters the user directory.
type ListParams struct {
	UserType string
	Active   *bool
	Search   string
	Limit    int
	Cursor   string
}

// ListResult is one page of users.
type ListResult struct {
	Items  []*UserDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// NewService wires the user management service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		audit:     params.Audit,
		notifier:  params.Notifier,
		passwords: params.Passwords,
		sessions:  params.Sessions,
		logg:      params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateUserInput) (*CreateUserResult, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can create users")
	}
	if input.IsSuperuser && !actor.IsSuperuser {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only superusers can grant superuser")
	}
	userType, err := enums.ParseUserType(strings.TrimSpace(input.UserType))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user type")
	}
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email are required")
	}

	password := input.Password
	temporary := ""
	if password != "" {
		if err := security.CheckStrength(password); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "password too weak").
				WithDetails(map[string]any{"password": err.Error()})
		}
	} else {
		generated, err := security.GenerateTempPassword(temporaryPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temporary password")
		}
		password = generated
		temporary = generated
	}
	hash, err := security.HashPassword(password, s.passwords)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        input.Phone,
		UserType:     userType,
		IsSuperuser:  input.IsSuperuser,
		IsActive:     true,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "username or email already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditUserCreated,
			EntityType: "user",
			EntityID:   user.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"username":     user.Username,
				"user_type":    string(user.UserType),
				"is_superuser": user.IsSuperuser,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyUser(ctx, user.ID, enums.NotificationPasswordSetup, map[string]any{"username": user.Username}); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", user.ID.String()), "password setup notification failed")
		}
	}
	return &CreateUserResult{User: FromModel(user), TemporaryPassword: temporary}, nil
}

func (s *service) Toggle(ctx context.Context, actor auth.Actor, userID uuid.UUID) (*UserDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can change user status")
	}
	if actor.UserID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot deactivate your own account")
	}

	var updated *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		if user.IsSuperuser && !actor.IsSuperuser {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only superusers can change a superuser")
		}
		user.IsActive = !user.IsActive
		if err := repo.SetActive(ctx, user.ID, user.IsActive); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user status")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditUserToggled,
			EntityType: "user",
			EntityID:   user.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    map[string]any{"is_active": user.IsActive},
		})
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !updated.IsActive && s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, updated.ID); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": updated.ID.String(), "error": err.Error()})
			s.logg.Warn(logCtx, "failed to revoke sessions of deactivated user")
		}
	}
	return FromModel(updated), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		Active: params.Active,
		Search: params.Search,
		Limit:  params.Limit,
	}
	if raw := strings.TrimSpace(params.UserType); raw != "" {
		userType, err := enums.ParseUserType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user type")
		}
		query.UserType = &userType
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	result := &ListResult{Items: make([]*UserDTO, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, FromModel(&rows[i]))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
