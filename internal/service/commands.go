package service

import (
	"encoding/json"
	"time"

	"smarthome/internal/models"
)

// commandInput is everything a handler may read: the stored device (for
// static attributes), a copy of the pre-update states, and the parameter bag.
type commandInput struct {
	device   *models.Device
	snapshot map[string]any
	params   map[string]any
}

// commandOutcome is what a handler produces: the fields to persist (dotted
// paths under states) and the response subset echoed to the caller. The two
// sets differ for commands with derived or echoed fields.
type commandOutcome struct {
	patch  map[string]any
	states map[string]any
}

type commandHandler func(in commandInput) (commandOutcome, error)

const commandPrefix = "action.devices.commands."

// commands is the closed dispatch table mapping wire command names to their
// handlers. Commands missing from the table are a deliberate no-op in
// EngineService.Execute.
var commands = map[string]commandHandler{
	commandPrefix + "BrightnessAbsolute": absoluteSetter("brightness", "brightness"),
	commandPrefix + "GetCameraStream":    execGetCameraStream,
	commandPrefix + "ColorAbsolute":      execColorAbsolute,
	commandPrefix + "Dock":               execDock,
	commandPrefix + "SetFanSpeed":        absoluteSetter("fanSpeed", "currentFanSpeedSetting"),
	commandPrefix + "Reverse":            execReverse,
	commandPrefix + "SetHumidity":        absoluteSetter("humidity", "humiditySetpointPercent"),
	commandPrefix + "Locate":             execLocate,
	commandPrefix + "LockUnlock":         absoluteSetter("lock", "isLocked"),
	commandPrefix + "OnOff":              absoluteSetter("on", "on"),
	commandPrefix + "ActivateScene":      execActivateScene,
	commandPrefix + "RotateAbsolute":     execRotateAbsolute,
	commandPrefix + "StartStop":          absoluteSetter("start", "isRunning"),
	commandPrefix + "PauseUnpause":       absoluteSetter("pause", "isPaused"),
	commandPrefix + "SetModes":           mergeSetter("updateModeSettings", "currentModeSettings"),
	commandPrefix + "SetToggles":         mergeSetter("updateToggleSettings", "currentToggleSettings"),
	commandPrefix + "SetTemperature": absoluteSetter("temperature", "temperatureSetpointCelsius",
		"temperatureAmbientCelsius"),
	commandPrefix + "ThermostatTemperatureSetpoint": absoluteSetter("thermostatTemperatureSetpoint",
		"thermostatTemperatureSetpoint",
		"thermostatMode", "thermostatTemperatureAmbient", "thermostatHumidityAmbient"),
	commandPrefix + "ThermostatTemperatureSetRange": execThermostatSetRange,
	commandPrefix + "ThermostatSetMode": absoluteSetter("thermostatMode", "thermostatMode",
		"thermostatTemperatureSetpoint", "thermostatTemperatureAmbient", "thermostatHumidityAmbient"),
	commandPrefix + "ArmDisarm":      execArmDisarm,
	commandPrefix + "OpenClose":      execOpenClose,
	commandPrefix + "Reboot":         execReboot,
	commandPrefix + "SoftwareUpdate": execSoftwareUpdate,
	commandPrefix + "Cook":           execCook,
	commandPrefix + "Dispense":       execDispense,
	commandPrefix + "TimerStart":     execTimerStart,
	commandPrefix + "TimerAdjust":    execTimerAdjust,
	commandPrefix + "TimerPause":     execTimerPause,
	commandPrefix + "TimerResume":    execTimerResume,
	commandPrefix + "TimerCancel":    execTimerCancel,
}

// decodeParams round-trips the parameter bag through JSON into a typed
// record for handlers with branchy parameter shapes.
func decodeParams(params map[string]any, dst any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// absoluteSetter builds a handler that writes one named parameter verbatim
// to a state field and echoes it. Any extra field names are echoed into the
// response from the pre-update snapshot (thermostat commands echo their
// sibling ambient readings).
func absoluteSetter(param, stateField string, echo ...string) commandHandler {
	return func(in commandInput) (commandOutcome, error) {
		value := in.params[param]
		out := commandOutcome{
			patch:  map[string]any{stateField: value},
			states: map[string]any{stateField: value},
		}
		for _, field := range echo {
			out.states[field] = in.snapshot[field]
		}
		return out, nil
	}
}

// mergeSetter builds a handler that overlays an incoming settings map onto
// the current one: union, not replace.
func mergeSetter(param, stateField string) commandHandler {
	return func(in commandInput) (commandOutcome, error) {
		current, _ := in.snapshot[stateField].(map[string]any)
		update, _ := in.params[param].(map[string]any)
		merged := make(map[string]any, len(current)+len(update))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range update {
			merged[k] = v
		}
		return commandOutcome{
			patch:  map[string]any{stateField: merged},
			states: map[string]any{stateField: merged},
		}, nil
	}
}

// Camera streams are not persisted; the response carries a canned URL.
func execGetCameraStream(commandInput) (commandOutcome, error) {
	return commandOutcome{
		states: map[string]any{"cameraStreamAccessUrl": "https://fluffysheep.com/baaaaa.mp4"},
	}, nil
}

// execColorAbsolute branches on which of the three mutually exclusive color
// encodings the caller sent. The response key differs from the stored
// sub-path casing for spectrum colors; the notifier rewrites it on push.
func execColorAbsolute(in commandInput) (commandOutcome, error) {
	color, _ := in.params["color"].(map[string]any)
	if v, ok := color["spectrumRGB"]; ok {
		return commandOutcome{
			patch:  map[string]any{"color.spectrumRgb": v},
			states: map[string]any{"spectrumRgb": v},
		}, nil
	}
	if v, ok := color["spectrumHSV"]; ok {
		return commandOutcome{
			patch:  map[string]any{"color.spectrumHsv": v},
			states: map[string]any{"spectrumHsv": v},
		}, nil
	}
	if v, ok := color["temperature"]; ok {
		return commandOutcome{
			patch:  map[string]any{"color.temperatureK": v},
			states: map[string]any{"temperatureK": v},
		}, nil
	}
	return commandOutcome{}, execError(codeNotSupported)
}

func execDock(commandInput) (commandOutcome, error) {
	return commandOutcome{
		patch:  map[string]any{"isDocked": true},
		states: map[string]any{"isDocked": true},
	}, nil
}

// Reverse only flips the stored flag; the platform expects no echo.
func execReverse(commandInput) (commandOutcome, error) {
	return commandOutcome{
		patch:  map[string]any{"currentFanSpeedReverse": true},
		states: map[string]any{},
	}, nil
}

func execLocate(in commandInput) (commandOutcome, error) {
	return commandOutcome{
		patch: map[string]any{
			"silent":         in.params["silent"],
			"generatedAlert": true,
		},
		states: map[string]any{"generatedAlert": true},
	}, nil
}

// Scenes are stateless: the deactivate flag is persisted, nothing is echoed.
func execActivateScene(in commandInput) (commandOutcome, error) {
	return commandOutcome{
		patch:  map[string]any{"deactivate": in.params["deactivate"]},
		states: map[string]any{},
	}, nil
}

func execRotateAbsolute(in commandInput) (commandOutcome, error) {
	out := commandOutcome{patch: map[string]any{}, states: map[string]any{}}
	if v, ok := in.params["rotationDegrees"]; ok {
		out.patch["rotationDegrees"] = v
		out.states["rotationDegrees"] = v
	}
	if v, ok := in.params["rotationPercent"]; ok {
		out.patch["rotationPercent"] = v
		out.states["rotationPercent"] = v
	}
	return out, nil
}

func execThermostatSetRange(in commandInput) (commandOutcome, error) {
	low := in.params["thermostatTemperatureSetpointLow"]
	high := in.params["thermostatTemperatureSetpointHigh"]
	out := commandOutcome{
		patch: map[string]any{
			"thermostatTemperatureSetpointLow":  low,
			"thermostatTemperatureSetpointHigh": high,
		},
		states: map[string]any{
			"thermostatTemperatureSetpointLow":  low,
			"thermostatTemperatureSetpointHigh": high,
		},
	}
	for _, field := range []string{"thermostatMode", "thermostatTemperatureAmbient", "thermostatHumidityAmbient"} {
		out.states[field] = in.snapshot[field]
	}
	return out, nil
}

type armDisarmParams struct {
	Arm      *bool  `json:"arm"`
	Cancel   *bool  `json:"cancel"`
	ArmLevel string `json:"armLevel"`
}

// execArmDisarm takes arm directly, or cancel as the negation of the current
// armed state. An arm level, when supplied, is written alongside.
func execArmDisarm(in commandInput) (commandOutcome, error) {
	var p armDisarmParams
	if err := decodeParams(in.params, &p); err != nil {
		return commandOutcome{}, execError(codeNotSupported)
	}

	var armed bool
	switch {
	case p.Arm != nil:
		armed = *p.Arm
	case p.Cancel != nil && *p.Cancel:
		current, _ := in.snapshot["isArmed"].(bool)
		armed = !current
	default:
		return commandOutcome{}, execError(codeNotSupported)
	}

	out := commandOutcome{
		patch:  map[string]any{"isArmed": armed},
		states: map[string]any{"isArmed": armed},
	}
	if p.ArmLevel != "" {
		out.patch["currentArmLevel"] = p.ArmLevel
		out.states["currentArmLevel"] = p.ArmLevel
	}
	return out, nil
}

type openCloseParams struct {
	OpenPercent   *float64 `json:"openPercent"`
	OpenDirection string   `json:"openDirection"`
}

// execOpenClose updates a single scalar openPercent unless the device's
// static attributes declare openDirection, in which case only the matching
// entry of the per-direction openState array changes.
func execOpenClose(in commandInput) (commandOutcome, error) {
	var p openCloseParams
	if err := decodeParams(in.params, &p); err != nil {
		return commandOutcome{}, execError(codeNotSupported)
	}

	if _, directional := in.device.Attributes["openDirection"]; !directional {
		return commandOutcome{
			patch:  map[string]any{"openPercent": in.params["openPercent"]},
			states: map[string]any{"openPercent": in.params["openPercent"]},
		}, nil
	}

	openState, _ := in.snapshot["openState"].([]any)
	for _, entry := range openState {
		state, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if dir, _ := state["openDirection"].(string); dir == p.OpenDirection {
			state["openPercent"] = in.params["openPercent"]
		}
	}
	return commandOutcome{
		patch:  map[string]any{"openState": openState},
		states: map[string]any{"openState": openState},
	}, nil
}

func execReboot(commandInput) (commandOutcome, error) {
	return commandOutcome{
		patch:  map[string]any{"online": false},
		states: map[string]any{},
	}, nil
}

func execSoftwareUpdate(commandInput) (commandOutcome, error) {
	updatedAt := time.Now().Unix()
	patch := map[string]any{"lastSoftwareUpdateUnixTimestampSec": updatedAt}
	patch["online"] = false
	return commandOutcome{
		patch:  patch,
		states: map[string]any{"lastSoftwareUpdateUnixTimestampSec": updatedAt},
	}, nil
}

type cookParams struct {
	Start       bool     `json:"start"`
	CookingMode string   `json:"cookingMode"`
	FoodPreset  string   `json:"foodPreset"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
}

// execCook starts a cooking run by filling the four cooking fields from
// params or their literal defaults, or stops one by resetting to "NONE".
func execCook(in commandInput) (commandOutcome, error) {
	var p cookParams
	if err := decodeParams(in.params, &p); err != nil {
		return commandOutcome{}, execError(codeNotSupported)
	}

	fields := map[string]any{}
	if p.Start {
		preset, unit := p.FoodPreset, p.Unit
		if preset == "" {
			preset = "NONE"
		}
		if unit == "" {
			unit = "NONE"
		}
		var quantity float64
		if p.Quantity != nil {
			quantity = *p.Quantity
		}
		fields["currentCookingMode"] = p.CookingMode
		fields["currentFoodPreset"] = preset
		fields["currentFoodQuantity"] = quantity
		fields["currentFoodUnit"] = unit
	} else {
		fields["currentCookingMode"] = "NONE"
		fields["currentFoodPreset"] = "NONE"
	}

	out := commandOutcome{patch: map[string]any{}, states: map[string]any{}}
	for k, v := range fields {
		out.patch[k] = v
		out.states[k] = v
	}
	return out, nil
}

type dispenseParams struct {
	Item       string   `json:"item"`
	Amount     *float64 `json:"amount"`
	Unit       string   `json:"unit"`
	PresetName string   `json:"presetName"`
}

// Dispense presets override the caller-supplied amount and unit; "cat food
// bowl" always dispenses 4 CUPS no matter what was asked for.
func execDispense(in commandInput) (commandOutcome, error) {
	var p dispenseParams
	if err := decodeParams(in.params, &p); err != nil {
		return commandOutcome{}, execError(codeNotSupported)
	}

	var amount float64
	if p.Amount != nil {
		amount = *p.Amount
	}
	unit := p.Unit
	if p.PresetName == "cat food bowl" {
		amount = 4
		unit = "CUPS"
	}

	items := []any{
		map[string]any{
			"itemName": p.Item,
			"amountLastDispensed": map[string]any{
				"amount": amount,
				"unit":   unit,
			},
			"isCurrentlyDispensing": p.PresetName != "",
		},
	}
	return commandOutcome{
		patch:  map[string]any{"dispenseItems": items},
		states: map[string]any{"dispenseItems": items},
	}, nil
}

// noActiveTimer is the stored sentinel for "no timer running".
const noActiveTimer = float64(-1)

func timerRemaining(snapshot map[string]any) float64 {
	switch v := snapshot["timerRemainingSec"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return noActiveTimer
}

func execTimerStart(in commandInput) (commandOutcome, error) {
	v := in.params["timerTimeSec"]
	return commandOutcome{
		patch:  map[string]any{"timerRemainingSec": v},
		states: map[string]any{"timerRemainingSec": v},
	}, nil
}

func execTimerAdjust(in commandInput) (commandOutcome, error) {
	remaining := timerRemaining(in.snapshot)
	if remaining == noActiveTimer {
		return commandOutcome{}, execError(codeNoTimerExists)
	}
	delta, _ := in.params["timerTimeSec"].(float64)
	adjusted := remaining + delta
	if adjusted < 0 {
		return commandOutcome{}, execError(codeValueOutOfRange)
	}
	return commandOutcome{
		patch:  map[string]any{"timerRemainingSec": adjusted},
		states: map[string]any{"timerRemainingSec": adjusted},
	}, nil
}

func execTimerPause(in commandInput) (commandOutcome, error) {
	if timerRemaining(in.snapshot) == noActiveTimer {
		return commandOutcome{}, execError(codeNoTimerExists)
	}
	return commandOutcome{
		patch:  map[string]any{"timerPaused": true},
		states: map[string]any{"timerPaused": true},
	}, nil
}

func execTimerResume(in commandInput) (commandOutcome, error) {
	if timerRemaining(in.snapshot) == noActiveTimer {
		return commandOutcome{}, execError(codeNoTimerExists)
	}
	return commandOutcome{
		patch:  map[string]any{"timerPaused": false},
		states: map[string]any{"timerPaused": false},
	}, nil
}

// execTimerCancel stores the no-timer sentinel but reports 0 to the caller.
// The asymmetry is the platform's documented behavior, not a bug to fix.
func execTimerCancel(in commandInput) (commandOutcome, error) {
	if timerRemaining(in.snapshot) == noActiveTimer {
		return commandOutcome{}, execError(codeNoTimerExists)
	}
	return commandOutcome{
		patch:  map[string]any{"timerRemainingSec": noActiveTimer},
		states: map[string]any{"timerRemainingSec": float64(0)},
	}, nil
}
