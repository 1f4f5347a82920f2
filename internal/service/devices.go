package service

import (
	"context"
	"errors"
	"fmt"

	"smarthome/internal/models"
	"smarthome/internal/repository"
)

// ErrEmptyUpdate rejects device updates that carry no fields, states or
// state paths.
var ErrEmptyUpdate = errors.New("update carries no changes")

// DeviceUpdate is one management-API update, pre-parsed by the handler so
// the null-means-delete distinction survives JSON decoding.
type DeviceUpdate struct {
	UserID   string
	DeviceID string
	Patch    models.DevicePatch
	// States to broadcast after the write; nil means no report.
	NotifyStates map[string]any
}

type DeviceService struct {
	devices  repository.Devices
	notifier Notifier
}

func NewDeviceService(devices repository.Devices, notifier Notifier) *DeviceService {
	return &DeviceService{devices: devices, notifier: notifier}
}

var _ DeviceManager = (*DeviceService)(nil)

func (s *DeviceService) List(ctx context.Context, userID string) ([]models.Device, error) {
	return s.devices.List(ctx, userID)
}

// Create registers a device from its raw document and returns the assigned
// id.
func (s *DeviceService) Create(ctx context.Context, userID string, data map[string]any) (string, error) {
	if len(data) == 0 {
		return "", errors.New("device document is empty")
	}
	id, err := s.devices.Add(ctx, userID, data)
	if err != nil {
		return "", fmt.Errorf("add device: %w", err)
	}
	return id, nil
}

// Update applies a pre-parsed patch and, when requested, reports the new
// states out-of-band.
func (s *DeviceService) Update(ctx context.Context, u DeviceUpdate) error {
	if u.Patch.IsZero() {
		return ErrEmptyUpdate
	}
	if err := s.devices.Update(ctx, u.UserID, u.DeviceID, u.Patch); err != nil {
		return err
	}
	if u.NotifyStates != nil {
		s.notifier.Push(u.UserID, u.DeviceID, u.NotifyStates)
	}
	return nil
}

func (s *DeviceService) Delete(ctx context.Context, userID, deviceID string) error {
	return s.devices.Delete(ctx, userID, deviceID)
}
