package service

import (
	"context"
	"errors"
	"testing"

	"smarthome/internal/models"
	"smarthome/internal/repository"
)

// in-memory Devices stub recording the last applied patch
type stubDevices struct {
	device    *models.Device
	getErr    error
	updateErr error

	lastPatch    models.DevicePatch
	updateCalled int
}

func (s *stubDevices) List(ctx context.Context, userID string) ([]models.Device, error) {
	if s.device == nil {
		return nil, nil
	}
	return []models.Device{*s.device}, nil
}

func (s *stubDevices) Get(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.device, nil
}

func (s *stubDevices) GetState(ctx context.Context, userID, deviceID string) (map[string]any, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.device.States, nil
}

func (s *stubDevices) Add(ctx context.Context, userID string, doc map[string]any) (string, error) {
	return "", nil
}

func (s *stubDevices) Update(ctx context.Context, userID, deviceID string, patch models.DevicePatch) error {
	s.updateCalled++
	s.lastPatch = patch
	return s.updateErr
}

func (s *stubDevices) Delete(ctx context.Context, userID, deviceID string) error { return nil }

func onlineDevice(states map[string]any) *models.Device {
	merged := map[string]any{"online": true}
	for k, v := range states {
		merged[k] = v
	}
	return &models.Device{ID: "light1", Type: "action.devices.types.LIGHT", States: merged}
}

func runCommand(t *testing.T, d *models.Device, command string, params, challenge map[string]any) (map[string]any, models.DevicePatch, error) {
	t.Helper()
	store := &stubDevices{device: d}
	engine := NewEngineService(store)
	states, err := engine.Execute(context.Background(), "user1", d.ID, models.Execution{
		Command:   command,
		Params:    params,
		Challenge: challenge,
	})
	return states, store.lastPatch, err
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Code != code {
		t.Fatalf("expected code %q, got %q", code, execErr.Code)
	}
}

func TestEngine_Preconditions(t *testing.T) {
	engine := NewEngineService(&stubDevices{getErr: repository.ErrDeviceNotFound})
	_, err := engine.Execute(context.Background(), "user1", "nope", models.Execution{
		Command: "action.devices.commands.OnOff",
		Params:  map[string]any{"on": true},
	})
	if !errors.Is(err, repository.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}

	offline := &models.Device{ID: "light1", States: map[string]any{"online": false}}
	_, _, err = runCommand(t, offline, "action.devices.commands.OnOff",
		map[string]any{"on": true}, nil)
	wantCode(t, err, codeDeviceOffline)

	broken := onlineDevice(nil)
	broken.ErrorCode = "inSoftwareUpdate"
	_, _, err = runCommand(t, broken, "action.devices.commands.OnOff",
		map[string]any{"on": true}, nil)
	wantCode(t, err, "inSoftwareUpdate")
}

func TestEngine_ChallengeGate(t *testing.T) {
	cases := []struct {
		name      string
		tfa       string
		challenge map[string]any
		wantCode  string // empty means success
	}{
		{name: "no tfa", tfa: "", challenge: nil},
		{name: "ack missing challenge", tfa: "ack", challenge: nil, wantCode: codeAckNeeded},
		{name: "ack any challenge", tfa: "ack", challenge: map[string]any{"ack": true}},
		{name: "ack pin challenge also passes", tfa: "ack", challenge: map[string]any{"pin": "0000"}},
		{name: "pin missing challenge", tfa: "1234", challenge: nil, wantCode: codePinNeeded},
		{name: "pin mismatch", tfa: "1234", challenge: map[string]any{"pin": "9999"}, wantCode: codeChallengeFailed},
		{name: "pin match", tfa: "1234", challenge: map[string]any{"pin": "1234"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := onlineDevice(nil)
			d.TFA = tc.tfa
			states, _, err := runCommand(t, d, "action.devices.commands.OnOff",
				map[string]any{"on": true}, tc.challenge)
			if tc.wantCode != "" {
				wantCode(t, err, tc.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if states["on"] != true {
				t.Fatalf("expected on=true, got %v", states)
			}
		})
	}
}

func TestEngine_UnknownCommandEchoesSnapshot(t *testing.T) {
	d := onlineDevice(map[string]any{"brightness": float64(40)})
	store := &stubDevices{device: d}
	engine := NewEngineService(store)

	states, err := engine.Execute(context.Background(), "user1", d.ID, models.Execution{
		Command: "action.devices.commands.DoesNotExist",
		Params:  map[string]any{"whatever": 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["brightness"] != float64(40) || states["online"] != true {
		t.Fatalf("expected unchanged snapshot, got %v", states)
	}
	if store.updateCalled != 0 {
		t.Fatalf("unknown command must not persist, Update called %d times", store.updateCalled)
	}
}

func TestEngine_SimpleSetters(t *testing.T) {
	cases := []struct {
		name      string
		command   string
		params    map[string]any
		wantField string
		wantValue any
	}{
		{"brightness", "action.devices.commands.BrightnessAbsolute",
			map[string]any{"brightness": float64(65)}, "brightness", float64(65)},
		{"fan speed", "action.devices.commands.SetFanSpeed",
			map[string]any{"fanSpeed": "speed_high"}, "currentFanSpeedSetting", "speed_high"},
		{"humidity", "action.devices.commands.SetHumidity",
			map[string]any{"humidity": float64(45)}, "humiditySetpointPercent", float64(45)},
		{"lock", "action.devices.commands.LockUnlock",
			map[string]any{"lock": true}, "isLocked", true},
		{"start", "action.devices.commands.StartStop",
			map[string]any{"start": true}, "isRunning", true},
		{"pause", "action.devices.commands.PauseUnpause",
			map[string]any{"pause": true}, "isPaused", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			states, patch, err := runCommand(t, onlineDevice(nil), tc.command, tc.params, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if states[tc.wantField] != tc.wantValue {
				t.Fatalf("response %s=%v, want %v", tc.wantField, states[tc.wantField], tc.wantValue)
			}
			if patch.StatePaths[tc.wantField] != tc.wantValue {
				t.Fatalf("patch %s=%v, want %v", tc.wantField, patch.StatePaths[tc.wantField], tc.wantValue)
			}
		})
	}
}

func TestEngine_SettersAreIdempotent(t *testing.T) {
	d := onlineDevice(map[string]any{"brightness": float64(65)})
	first, _, err := runCommand(t, d, "action.devices.commands.BrightnessAbsolute",
		map[string]any{"brightness": float64(65)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := runCommand(t, d, "action.devices.commands.BrightnessAbsolute",
		map[string]any{"brightness": float64(65)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first["brightness"] != second["brightness"] {
		t.Fatalf("repeat application diverged: %v vs %v", first, second)
	}
}

func TestEngine_ColorAbsoluteBranches(t *testing.T) {
	cases := []struct {
		name      string
		color     map[string]any
		patchPath string
		respKey   string
		wantValue any
	}{
		{"rgb", map[string]any{"spectrumRGB": float64(16711680)}, "color.spectrumRgb", "spectrumRgb", float64(16711680)},
		{"hsv", map[string]any{"spectrumHSV": map[string]any{"hue": float64(120)}}, "color.spectrumHsv", "spectrumHsv", nil},
		{"temperature", map[string]any{"temperature": float64(3500)}, "color.temperatureK", "temperatureK", float64(3500)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			states, patch, err := runCommand(t, onlineDevice(nil), "action.devices.commands.ColorAbsolute",
				map[string]any{"color": tc.color}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := patch.StatePaths[tc.patchPath]; !ok {
				t.Fatalf("patch missing %s: %v", tc.patchPath, patch.StatePaths)
			}
			if _, ok := states[tc.respKey]; !ok {
				t.Fatalf("response missing %s: %v", tc.respKey, states)
			}
			if tc.wantValue != nil && states[tc.respKey] != tc.wantValue {
				t.Fatalf("response %s=%v, want %v", tc.respKey, states[tc.respKey], tc.wantValue)
			}
		})
	}

	_, _, err := runCommand(t, onlineDevice(nil), "action.devices.commands.ColorAbsolute",
		map[string]any{"color": map[string]any{}}, nil)
	wantCode(t, err, codeNotSupported)
}

func TestEngine_ModesAndTogglesMerge(t *testing.T) {
	d := onlineDevice(map[string]any{
		"currentModeSettings": map[string]any{"load": "small", "temp": "cold"},
	})
	states, _, err := runCommand(t, d, "action.devices.commands.SetModes",
		map[string]any{"updateModeSettings": map[string]any{"load": "large"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	merged, _ := states["currentModeSettings"].(map[string]any)
	if merged["load"] != "large" {
		t.Fatalf("expected load overwritten, got %v", merged)
	}
	if merged["temp"] != "cold" {
		t.Fatalf("expected untouched mode preserved, got %v", merged)
	}
}

func TestEngine_TimerLifecycle(t *testing.T) {
	// no timer: adjust, pause, resume, cancel all fail
	idle := onlineDevice(map[string]any{"timerRemainingSec": float64(-1)})
	for _, cmd := range []string{"TimerAdjust", "TimerPause", "TimerResume", "TimerCancel"} {
		_, _, err := runCommand(t, idle, "action.devices.commands."+cmd,
			map[string]any{"timerTimeSec": float64(10)}, nil)
		wantCode(t, err, codeNoTimerExists)
	}

	// start
	states, patch, err := runCommand(t, onlineDevice(nil), "action.devices.commands.TimerStart",
		map[string]any{"timerTimeSec": float64(300)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["timerRemainingSec"] != float64(300) || patch.StatePaths["timerRemainingSec"] != float64(300) {
		t.Fatalf("timer start wrote %v", patch.StatePaths)
	}

	// adjust below zero
	running := onlineDevice(map[string]any{"timerRemainingSec": float64(30)})
	_, _, err = runCommand(t, running, "action.devices.commands.TimerAdjust",
		map[string]any{"timerTimeSec": float64(-60)}, nil)
	wantCode(t, err, codeValueOutOfRange)

	// adjust within range
	states, _, err = runCommand(t, running, "action.devices.commands.TimerAdjust",
		map[string]any{"timerTimeSec": float64(-10)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["timerRemainingSec"] != float64(20) {
		t.Fatalf("expected 20 remaining, got %v", states["timerRemainingSec"])
	}

	// cancel stores the sentinel but reports zero
	states, patch, err = runCommand(t, running, "action.devices.commands.TimerCancel", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.StatePaths["timerRemainingSec"] != float64(-1) {
		t.Fatalf("cancel must store -1, stored %v", patch.StatePaths["timerRemainingSec"])
	}
	if states["timerRemainingSec"] != float64(0) {
		t.Fatalf("cancel must report 0, reported %v", states["timerRemainingSec"])
	}
}

func TestEngine_DispensePresetOverride(t *testing.T) {
	states, _, err := runCommand(t, onlineDevice(nil), "action.devices.commands.Dispense",
		map[string]any{"presetName": "cat food bowl", "amount": float64(1), "unit": "NO_UNITS"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := states["dispenseItems"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one dispense item, got %v", states)
	}
	item := items[0].(map[string]any)
	last := item["amountLastDispensed"].(map[string]any)
	if last["amount"] != float64(4) || last["unit"] != "CUPS" {
		t.Fatalf("preset must force 4 CUPS, got %v", last)
	}
	if item["isCurrentlyDispensing"] != true {
		t.Fatalf("preset dispense should be marked in progress, got %v", item)
	}
}

func TestEngine_OpenCloseBranches(t *testing.T) {
	// scalar device
	states, patch, err := runCommand(t, onlineDevice(nil), "action.devices.commands.OpenClose",
		map[string]any{"openPercent": float64(70)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["openPercent"] != float64(70) || patch.StatePaths["openPercent"] != float64(70) {
		t.Fatalf("scalar openPercent not applied: %v", states)
	}

	// directional device
	d := onlineDevice(map[string]any{
		"openState": []any{
			map[string]any{"openDirection": "UP", "openPercent": float64(0)},
			map[string]any{"openDirection": "DOWN", "openPercent": float64(0)},
		},
	})
	d.Attributes = map[string]any{"openDirection": []any{"UP", "DOWN"}}
	states, _, err = runCommand(t, d, "action.devices.commands.OpenClose",
		map[string]any{"openPercent": float64(50), "openDirection": "UP"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	openState, _ := states["openState"].([]any)
	up := openState[0].(map[string]any)
	down := openState[1].(map[string]any)
	if up["openPercent"] != float64(50) {
		t.Fatalf("UP entry not updated: %v", up)
	}
	if down["openPercent"] != float64(0) {
		t.Fatalf("DOWN entry must stay untouched: %v", down)
	}
}

func TestEngine_ArmDisarm(t *testing.T) {
	states, _, err := runCommand(t, onlineDevice(nil), "action.devices.commands.ArmDisarm",
		map[string]any{"arm": true, "armLevel": "L2"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["isArmed"] != true || states["currentArmLevel"] != "L2" {
		t.Fatalf("arm with level failed: %v", states)
	}

	armed := onlineDevice(map[string]any{"isArmed": true})
	states, _, err = runCommand(t, armed, "action.devices.commands.ArmDisarm",
		map[string]any{"cancel": true}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["isArmed"] != false {
		t.Fatalf("cancel must negate armed state: %v", states)
	}

	_, _, err = runCommand(t, onlineDevice(nil), "action.devices.commands.ArmDisarm",
		map[string]any{}, nil)
	wantCode(t, err, codeNotSupported)
}

func TestEngine_CookStartStop(t *testing.T) {
	states, _, err := runCommand(t, onlineDevice(nil), "action.devices.commands.Cook",
		map[string]any{"start": true, "cookingMode": "BAKE"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["currentCookingMode"] != "BAKE" || states["currentFoodPreset"] != "NONE" ||
		states["currentFoodQuantity"] != float64(0) || states["currentFoodUnit"] != "NONE" {
		t.Fatalf("cook start defaults wrong: %v", states)
	}

	states, _, err = runCommand(t, onlineDevice(nil), "action.devices.commands.Cook",
		map[string]any{"start": false}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["currentCookingMode"] != "NONE" || states["currentFoodPreset"] != "NONE" {
		t.Fatalf("cook stop must reset, got %v", states)
	}
}

func TestEngine_SilentResponses(t *testing.T) {
	// Reverse, ActivateScene and Reboot persist but echo nothing.
	cases := []struct {
		command string
		params  map[string]any
		stored  string
	}{
		{"action.devices.commands.Reverse", nil, "currentFanSpeedReverse"},
		{"action.devices.commands.ActivateScene", map[string]any{"deactivate": false}, "deactivate"},
		{"action.devices.commands.Reboot", nil, "online"},
	}
	for _, tc := range cases {
		states, patch, err := runCommand(t, onlineDevice(nil), tc.command, tc.params, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.command, err)
		}
		if len(states) != 0 {
			t.Fatalf("%s: expected empty response, got %v", tc.command, states)
		}
		if _, ok := patch.StatePaths[tc.stored]; !ok {
			t.Fatalf("%s: expected %s persisted, patch %v", tc.command, tc.stored, patch.StatePaths)
		}
	}
}

func TestEngine_CameraStreamNotPersisted(t *testing.T) {
	store := &stubDevices{device: onlineDevice(nil)}
	engine := NewEngineService(store)
	states, err := engine.Execute(context.Background(), "user1", "light1", models.Execution{
		Command: "action.devices.commands.GetCameraStream",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states["cameraStreamAccessUrl"] != "https://fluffysheep.com/baaaaa.mp4" {
		t.Fatalf("expected stream url, got %v", states)
	}
	if store.updateCalled != 0 {
		t.Fatalf("camera stream must not persist anything")
	}
}
