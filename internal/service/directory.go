package service

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Directory answers membership and identity questions owned by group
// administration. The ledger never writes through it.
//
//go:generate mockgen -destination=mocks/mock_directory.go -package=mock_service -source=directory.go Directory
type Directory interface {
	// GetGroup returns the group or an apperr NotFound error.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	IsActiveMember(ctx context.Context, groupID, userID string) (bool, error)
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// StoreDirectory implements Directory on top of the ledger store.
type StoreDirectory struct {
	store storage.Reader
}

// NewStoreDirectory creates a Directory backed by store.
func NewStoreDirectory(store storage.Reader) *StoreDirectory {
	return &StoreDirectory{store: store}
}

func (d *StoreDirectory) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := d.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("group", groupID)
	}
	if err != nil {
		return nil, apperr.Internal("load group", err)
	}
	return group, nil
}

func (d *StoreDirectory) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := d.member(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m.IsActive(), nil
}

func (d *StoreDirectory) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := d.member(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m.IsAdmin(), nil
}

func (d *StoreDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := d.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal("load user", err)
	}
	return true, nil
}

// member returns nil without error when the user has no membership row.
func (d *StoreDirectory) member(ctx context.Context, groupID, userID string) (*models.Member, error) {
	m, err := d.store.GetMember(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("load membership", err)
	}
	return m, nil
}
