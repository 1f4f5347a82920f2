package service

import (
	"context"
	"errors"
	"fmt"

	"smarthome/internal/logger"
	"smarthome/internal/models"
	"smarthome/internal/repository"
)

// ErrUnknownIntent is returned for intents outside the four the platform
// defines.
var ErrUnknownIntent = errors.New("unknown intent")

type FulfillmentService struct {
	auth     Authorization
	users    repository.Users
	devices  repository.Devices
	engine   Engine
	notifier Notifier
	log      *logger.Logger
}

func NewFulfillmentService(auth Authorization, users repository.Users, devices repository.Devices,
	engine Engine, notifier Notifier, log *logger.Logger) *FulfillmentService {
	return &FulfillmentService{
		auth:     auth,
		users:    users,
		devices:  devices,
		engine:   engine,
		notifier: notifier,
		log:      log,
	}
}

var _ Fulfillment = (*FulfillmentService)(nil)

// Handle resolves the caller and dispatches on the first input's intent.
// Every response echoes the request id.
func (s *FulfillmentService) Handle(ctx context.Context, authorization string, req models.IntentRequest) (any, error) {
	if len(req.Inputs) == 0 {
		return nil, ErrUnknownIntent
	}
	intent := req.Inputs[0].Intent

	userID, err := s.auth.ResolveToken(ctx, authorization)
	if err != nil {
		if intent == models.IntentDisconnect {
			// Disconnect must succeed even when the token is already dead.
			s.log.Warnw("disconnect_unresolved_token", "error", err)
			return map[string]any{}, nil
		}
		return nil, err
	}

	switch intent {
	case models.IntentSync:
		return s.sync(ctx, req.RequestID, userID)
	case models.IntentQuery:
		return s.query(ctx, req.RequestID, userID, req.Inputs[0].Payload)
	case models.IntentExecute:
		return s.execute(ctx, req.RequestID, userID, req.Inputs[0].Payload)
	case models.IntentDisconnect:
		return s.disconnect(ctx, userID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}
}

// sync marks the user reachable for report state and projects the full
// device inventory into the platform's SYNC shape.
func (s *FulfillmentService) sync(ctx context.Context, requestID, userID string) (*models.SyncResponse, error) {
	if err := s.users.SetHomegraph(ctx, userID, true); err != nil {
		s.log.Errorw("sync_homegraph_flag", "user_id", userID, "error", err)
	}

	devices, err := s.devices.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	out := make([]models.SyncDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, projectSyncDevice(d))
	}
	return &models.SyncResponse{
		RequestID: requestID,
		Payload: models.SyncPayload{
			AgentUserID: userID,
			Devices:     out,
		},
	}, nil
}

func projectSyncDevice(d models.Device) models.SyncDevice {
	traits := d.Traits
	if traits == nil {
		traits = []string{}
	}
	sd := models.SyncDevice{
		ID:     d.ID,
		Type:   d.Type,
		Traits: traits,
		Name: models.DeviceNames{
			Name:         d.Name,
			Nicknames:    d.Nicknames,
			DefaultNames: d.DefaultNames,
		},
		WillReportState: d.WillReportState,
		RoomHint:        d.RoomHint,
		Attributes:      d.Attributes,
		CustomData:      d.CustomData,
	}
	sd.DeviceInfo = models.DeviceInfo{
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		HwVersion:    d.HwVersion,
		SwVersion:    d.SwVersion,
	}
	for _, id := range d.OtherDeviceIDs {
		sd.OtherDeviceIDs = append(sd.OtherDeviceIDs, models.OtherDeviceID{DeviceID: id})
	}
	return sd
}

// query reads current state per requested device. A missing or unreadable
// device degrades to an offline error entry instead of failing the batch.
func (s *FulfillmentService) query(ctx context.Context, requestID, userID string, payload models.IntentPayload) (*models.QueryResponse, error) {
	out := make(map[string]map[string]any, len(payload.Devices))
	for _, ref := range payload.Devices {
		states, err := s.devices.GetState(ctx, userID, ref.ID)
		if err != nil {
			s.log.Errorw("query_device_state", "user_id", userID, "device_id", ref.ID, "error", err)
			out[ref.ID] = map[string]any{
				"status":    models.StatusError,
				"errorCode": codeDeviceOffline,
			}
			continue
		}
		entry := make(map[string]any, len(states)+1)
		for k, v := range states {
			entry[k] = v
		}
		entry["status"] = models.StatusSuccess
		out[ref.ID] = entry
	}
	return &models.QueryResponse{
		RequestID: requestID,
		Payload:   models.QueryPayload{Devices: out},
	}, nil
}

// execute runs every (device, execution) pair, collecting per-failure
// entries and one aggregate success entry whose states are the last
// successful command's result.
func (s *FulfillmentService) execute(ctx context.Context, requestID, userID string, payload models.IntentPayload) (*models.ExecuteResponse, error) {
	succeeded := []string{}
	lastStates := map[string]any{}
	var results []models.CommandResult

	for _, block := range payload.Commands {
		if len(block.Execution) == 0 {
			continue
		}
		exec := block.Execution[0]
		for _, ref := range block.Devices {
			states, err := s.engine.Execute(ctx, userID, ref.ID, exec)
			if err != nil {
				results = append(results, commandFailure(ref.ID, err))
				continue
			}
			succeeded = append(succeeded, ref.ID)
			lastStates = states
			s.notifier.Push(userID, ref.ID, states)
		}
	}

	// The trailing SUCCESS entry is emitted even when every device
	// failed, with empty ids and states.
	results = append(results, models.CommandResult{
		IDs:    succeeded,
		Status: models.StatusSuccess,
		States: lastStates,
	})
	return &models.ExecuteResponse{
		RequestID: requestID,
		Payload:   models.ExecutePayload{Commands: results},
	}, nil
}

// commandFailure shapes an engine error into the platform's per-device
// entry: challenges carry a challengeNeeded block, deferred work reports
// PENDING, everything else is a plain error code.
func commandFailure(deviceID string, err error) models.CommandResult {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return models.CommandResult{
				IDs:       []string{deviceID},
				Status:    models.StatusError,
				ErrorCode: "deviceNotFound",
			}
		}
		return models.CommandResult{
			IDs:       []string{deviceID},
			Status:    models.StatusError,
			ErrorCode: err.Error(),
		}
	}

	switch execErr.Code {
	case codePendingDeferred:
		return models.CommandResult{
			IDs:    []string{deviceID},
			Status: models.StatusPending,
		}
	case codeAckNeeded, codePinNeeded, codeChallengeFailed:
		return models.CommandResult{
			IDs:             []string{deviceID},
			Status:          models.StatusError,
			ErrorCode:       execErr.Code,
			ChallengeNeeded: map[string]string{"type": execErr.Code},
		}
	default:
		return models.CommandResult{
			IDs:       []string{deviceID},
			Status:    models.StatusError,
			ErrorCode: execErr.Code,
		}
	}
}

// disconnect clears the report state flag; the platform expects an empty
// object back.
func (s *FulfillmentService) disconnect(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.users.SetHomegraph(ctx, userID, false); err != nil {
		s.log.Errorw("disconnect_homegraph_flag", "user_id", userID, "error", err)
	}
	return map[string]any{}, nil
}
