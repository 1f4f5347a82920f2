package service

import (
	"context"

	"smarthome/internal/models"
	"smarthome/internal/repository"
)

// Fault codes surfaced to the platform as per-device error codes.
const (
	codeDeviceOffline   = "deviceOffline"
	codeAckNeeded       = "ackNeeded"
	codePinNeeded       = "pinNeeded"
	codeChallengeFailed = "challengeFailedPinNeeded"
	codeNotSupported    = "notSupported"
	codeNoTimerExists   = "noTimerExists"
	codeValueOutOfRange = "valueOutOfRange"
	codePendingDeferred = "PENDING" // deferred success, not a fault
)

// ExecutionError is a named fault raised by the command engine. Code is the
// literal error code the platform response carries.
type ExecutionError struct {
	Code string
}

func (e *ExecutionError) Error() string { return e.Code }

func execError(code string) *ExecutionError { return &ExecutionError{Code: code} }

// EngineService is the command-execution engine: precondition gates, a
// dispatch table over the closed command set, and persistence of the
// resulting state delta. It never caches device documents across calls; the
// store is the sole writer of record.
type EngineService struct {
	devices repository.Devices
}

func NewEngineService(devices repository.Devices) *EngineService {
	return &EngineService{devices: devices}
}

var _ Engine = (*EngineService)(nil)

// Execute runs one command against one device.
//
// Preconditions are checked in order, each a fail-fast gate: the device must
// exist, be online, carry no stored errorCode, and pass the two-factor gate.
// A recognized command then computes a state patch and its response subset;
// the patch is persisted before the subset is returned. The patch write and
// the command's own faults are not transactional: a failure mid-command can
// leave earlier writes in place. Unrecognized commands are a no-op that
// echoes the current state snapshot unchanged.
func (s *EngineService) Execute(ctx context.Context, userID, deviceID string, exec models.Execution) (map[string]any, error) {
	device, err := s.devices.Get(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]any, len(device.States))
	for k, v := range device.States {
		snap[k] = v
	}

	if online, _ := snap["online"].(bool); !online {
		return nil, execError(codeDeviceOffline)
	}
	if device.ErrorCode != "" {
		return nil, execError(device.ErrorCode)
	}
	if err := checkChallenge(device.TFA, exec.Challenge); err != nil {
		return nil, err
	}

	handler, ok := commands[exec.Command]
	if !ok {
		return snap, nil
	}

	out, err := handler(commandInput{device: device, snapshot: snap, params: exec.Params})
	if err != nil {
		return nil, err
	}
	if len(out.patch) > 0 {
		patch := models.DevicePatch{StatePaths: out.patch}
		if err := s.devices.Update(ctx, userID, deviceID, patch); err != nil {
			return nil, err
		}
	}
	return out.states, nil
}

// checkChallenge enforces the device's secondary-auth requirement. An "ack"
// requirement is satisfied by any challenge; a PIN requirement needs the
// challenge's pin field to match exactly.
func checkChallenge(tfa string, challenge map[string]any) error {
	switch {
	case tfa == "":
		return nil
	case challenge == nil:
		if tfa == "ack" {
			return execError(codeAckNeeded)
		}
		return execError(codePinNeeded)
	case tfa != "ack":
		if pin, _ := challenge["pin"].(string); pin != tfa {
			return execError(codeChallengeFailed)
		}
	}
	return nil
}
