package models

// Device is one entry in a user's registry. The document is schemaless on
// the wire; keys under States are only ever created by a successful command
// application, so no state schema is pre-declared here.
type Device struct {
	ID              string         `json:"id"`
	Type            string         `json:"type,omitempty"`
	Traits          []string       `json:"traits,omitempty"`
	Name            string         `json:"name,omitempty"`
	Nickname        string         `json:"nickname,omitempty"`
	Nicknames       []string       `json:"nicknames,omitempty"`
	DefaultNames    []string       `json:"defaultNames,omitempty"`
	WillReportState bool           `json:"willReportState,omitempty"`
	RoomHint        string         `json:"roomHint,omitempty"`
	Manufacturer    string         `json:"manufacturer,omitempty"`
	Model           string         `json:"model,omitempty"`
	HwVersion       string         `json:"hwVersion,omitempty"`
	SwVersion       string         `json:"swVersion,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	CustomData      map[string]any `json:"customData,omitempty"`
	OtherDeviceIDs  []string       `json:"otherDeviceIds,omitempty"`

	// ErrorCode, when set, blocks every command with that literal code.
	ErrorCode string `json:"errorCode,omitempty"`
	// TFA holds the secondary-auth requirement: "ack" for confirmation,
	// anything else is a PIN the challenge must match.
	TFA string `json:"tfa,omitempty"`

	States map[string]any `json:"states,omitempty"`
}

// Execution is a single command against one device. Consumed once by the
// command engine, never persisted.
type Execution struct {
	Command   string         `json:"command"`
	Params    map[string]any `json:"params,omitempty"`
	Challenge map[string]any `json:"challenge,omitempty"`
}

// DevicePatch is a structured partial update applied atomically to one
// stored device document.
type DevicePatch struct {
	// Fields updates top-level scalar fields (name, nickname, errorCode,
	// tfa). A nil value deletes the field.
	Fields map[string]*string
	// States, when non-nil, replaces the whole states map.
	States map[string]any
	// StatePaths updates individual dotted paths under states
	// (e.g. "color.spectrumRgb"). A nil value deletes the leaf.
	StatePaths map[string]any
}

// IsZero reports whether the patch carries no changes.
func (p DevicePatch) IsZero() bool {
	return len(p.Fields) == 0 && p.States == nil && len(p.StatePaths) == 0
}
