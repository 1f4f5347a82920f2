package repository

import (
	"context"
	"database/sql"
	"errors"

	"smarthome/internal/models"
)

// Store-level sentinels. Handlers and services branch on these rather than
// on driver errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrUserNotFound   = errors.New("user not found")
)

// Users is the platform-account side of the store: token lookup and the
// homegraph flag toggled by discovery/disconnect.
type Users interface {
	GetByAccessToken(ctx context.Context, token string) (*models.User, error)
	SetHomegraph(ctx context.Context, userID string, enabled bool) error
	Upsert(ctx context.Context, u models.User) error
}

// Devices is the per-user device registry, a document store keyed by
// (userId, deviceId).
type Devices interface {
	List(ctx context.Context, userID string) ([]models.Device, error)
	Get(ctx context.Context, userID, deviceID string) (*models.Device, error)
	GetState(ctx context.Context, userID, deviceID string) (map[string]any, error)
	Add(ctx context.Context, userID string, doc map[string]any) (string, error)
	Update(ctx context.Context, userID, deviceID string, patch models.DevicePatch) error
	Delete(ctx context.Context, userID, deviceID string) error
}

// Admins holds provisioning-tool accounts for the management API.
type Admins interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Admin, error)
}

type Repository struct {
	Users   Users
	Devices Devices
	Admins  Admins
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Users:   NewUserSQLite(db),
		Devices: NewDeviceSQLite(db),
		Admins:  NewAdminRepository(db),
	}
}
