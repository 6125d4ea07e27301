package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service defines the seller alert inbox.
type Service interface {
	List(ctx context.Context, actor orders.Actor, params ListParams) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, actor orders.Actor, notificationID uuid.UUID) error
}

type service struct {
	repo  Repository
	clock func() time.Time
}

// ListParams configures pagination for alerts.
type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, clock: time.Now}, nil
}

func (s *service) List(ctx context.Context, actor orders.Actor, params ListParams) (pagination.Page[models.Notification], error) {
	if err := orders.RequireRole(actor, enums.RoleSeller); err != nil {
		return pagination.Page[models.Notification]{}, err
	}

	query := listParams{
		SellerID:   actor.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Notification]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	page, err := s.repo.List(ctx, query)
	if err != nil {
		return pagination.Page[models.Notification]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return page, nil
}

func (s *service) MarkRead(ctx context.Context, actor orders.Actor, notificationID uuid.UUID) error {
	if err := orders.RequireRole(actor, enums.RoleSeller); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, actor.UserID, notificationID, s.clock().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
