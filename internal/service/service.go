package service

import (
	"context"

	"smarthome/internal/logger"
	"smarthome/internal/models"
	"smarthome/internal/repository"
)

// Authorization resolves platform bearer tokens and manages provisioning
// sessions for the management API.
type Authorization interface {
	ResolveToken(ctx context.Context, authorization string) (string, error)
	SignUp(username, password string) (int, error)
	SignIn(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Engine executes one command against one device and returns the state
// subset the caller must see.
type Engine interface {
	Execute(ctx context.Context, userID, deviceID string, exec models.Execution) (map[string]any, error)
}

// Fulfillment routes an intent envelope to its handler and shapes the
// platform response.
type Fulfillment interface {
	Handle(ctx context.Context, authorization string, req models.IntentRequest) (any, error)
}

// DeviceManager backs the out-of-band provisioning endpoints and the live
// state stream.
type DeviceManager interface {
	List(ctx context.Context, userID string) ([]models.Device, error)
	Create(ctx context.Context, userID string, data map[string]any) (string, error)
	Update(ctx context.Context, u DeviceUpdate) error
	Delete(ctx context.Context, userID, deviceID string) error
}

// Notifier accepts fire-and-forget state pushes. Satisfied by
// *notify.Dispatcher.
type Notifier interface {
	Push(userID, deviceID string, states map[string]any)
}

type Service struct {
	Authorization
	Engine
	Fulfillment
	DeviceManager
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, notifier Notifier, log *logger.Logger, authCfg AuthConfig) *Service {
	auth := NewAuthService(repos.Users, repos.Admins, authCfg)
	engine := NewEngineService(repos.Devices)
	return &Service{
		Authorization: auth,
		Engine:        engine,
		Fulfillment:   NewFulfillmentService(auth, repos.Users, repos.Devices, engine, notifier, log),
		DeviceManager: NewDeviceService(repos.Devices, notifier),
	}
}
