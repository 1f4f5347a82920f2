package handlers

import (
	"context"

	"smarthome/internal/models"
	"smarthome/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	resolveUserID string
	resolveErr    error
	signUpID      int
	signUpErr     error
	signInToken   string
	signInErr     error
	parseID       int
	parseErr      error

	lastResolveHeader  string
	lastSignUpUsername string
	lastSignUpPassword string
	lastParseToken     string
}

func (m *mockAuth) ResolveToken(ctx context.Context, authorization string) (string, error) {
	m.lastResolveHeader = authorization
	return m.resolveUserID, m.resolveErr
}
func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) SignIn(username, password string) (string, error) {
	return m.signInToken, m.signInErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockEngine struct {
	states map[string]any
	err    error
}

func (m *mockEngine) Execute(ctx context.Context, userID, deviceID string, exec models.Execution) (map[string]any, error) {
	return m.states, m.err
}

type mockFulfillment struct {
	resp any
	err  error

	lastAuthorization string
	lastRequest       models.IntentRequest
	calls             int
}

func (m *mockFulfillment) Handle(ctx context.Context, authorization string, req models.IntentRequest) (any, error) {
	m.calls++
	m.lastAuthorization = authorization
	m.lastRequest = req
	return m.resp, m.err
}

type mockDeviceManager struct {
	devices   []models.Device
	listErr   error
	createID  string
	createErr error
	updateErr error
	deleteErr error

	lastCreateUserID string
	lastCreateData   map[string]any
	lastUpdate       service.DeviceUpdate
	lastDeleteUserID string
	lastDeleteDevice string
}

func (m *mockDeviceManager) List(ctx context.Context, userID string) ([]models.Device, error) {
	return m.devices, m.listErr
}
func (m *mockDeviceManager) Create(ctx context.Context, userID string, data map[string]any) (string, error) {
	m.lastCreateUserID = userID
	m.lastCreateData = data
	return m.createID, m.createErr
}
func (m *mockDeviceManager) Update(ctx context.Context, u service.DeviceUpdate) error {
	m.lastUpdate = u
	return m.updateErr
}
func (m *mockDeviceManager) Delete(ctx context.Context, userID, deviceID string) error {
	m.lastDeleteUserID = userID
	m.lastDeleteDevice = deviceID
	return m.deleteErr
}
