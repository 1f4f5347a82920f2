package models

// Intent names of the four-intent fulfillment protocol. The envelope field
// names below must match the platform schema bit-for-bit.
const (
	IntentSync       = "action.devices.SYNC"
	IntentQuery      = "action.devices.QUERY"
	IntentExecute    = "action.devices.EXECUTE"
	IntentDisconnect = "action.devices.DISCONNECT"
)

// IntentRequest is the inbound fulfillment envelope shared by all intents.
type IntentRequest struct {
	RequestID string        `json:"requestId"`
	Inputs    []IntentInput `json:"inputs"`
}

type IntentInput struct {
	Intent  string        `json:"intent"`
	Payload IntentPayload `json:"payload,omitempty"`
}

// IntentPayload carries the QUERY device list or the EXECUTE command blocks,
// depending on the intent.
type IntentPayload struct {
	Devices  []DeviceRef    `json:"devices,omitempty"`
	Commands []CommandBlock `json:"commands,omitempty"`
}

type DeviceRef struct {
	ID         string         `json:"id"`
	CustomData map[string]any `json:"customData,omitempty"`
}

type CommandBlock struct {
	Devices   []DeviceRef `json:"devices"`
	Execution []Execution `json:"execution"`
}

// SyncResponse answers a discovery request.
type SyncResponse struct {
	RequestID string      `json:"requestId"`
	Payload   SyncPayload `json:"payload"`
}

type SyncPayload struct {
	AgentUserID string       `json:"agentUserId"`
	Devices     []SyncDevice `json:"devices"`
}

// SyncDevice projects a stored device into the discovery shape. Attributes,
// customData and otherDeviceIds are emitted only when present on the stored
// document.
type SyncDevice struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Traits          []string        `json:"traits"`
	Name            DeviceNames     `json:"name"`
	WillReportState bool            `json:"willReportState"`
	RoomHint        string          `json:"roomHint,omitempty"`
	DeviceInfo      DeviceInfo      `json:"deviceInfo"`
	Attributes      map[string]any  `json:"attributes,omitempty"`
	CustomData      map[string]any  `json:"customData,omitempty"`
	OtherDeviceIDs  []OtherDeviceID `json:"otherDeviceIds,omitempty"`
}

type DeviceNames struct {
	Name         string   `json:"name"`
	Nicknames    []string `json:"nicknames,omitempty"`
	DefaultNames []string `json:"defaultNames,omitempty"`
}

type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	HwVersion    string `json:"hwVersion"`
	SwVersion    string `json:"swVersion"`
}

type OtherDeviceID struct {
	DeviceID string `json:"deviceId"`
}

// QueryResponse maps each requested device id to its annotated state map.
type QueryResponse struct {
	RequestID string       `json:"requestId"`
	Payload   QueryPayload `json:"payload"`
}

type QueryPayload struct {
	Devices map[string]map[string]any `json:"devices"`
}

// ExecuteResponse lists one entry per failed/deferred device plus a single
// aggregate SUCCESS entry.
type ExecuteResponse struct {
	RequestID string         `json:"requestId"`
	Payload   ExecutePayload `json:"payload"`
}

type ExecutePayload struct {
	Commands []CommandResult `json:"commands"`
}

type CommandResult struct {
	IDs             []string          `json:"ids"`
	Status          string            `json:"status"`
	States          map[string]any    `json:"states,omitempty"`
	ErrorCode       string            `json:"errorCode,omitempty"`
	ChallengeNeeded map[string]string `json:"challengeNeeded,omitempty"`
}

// Statuses used in query and execute response entries.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
	StatusPending = "PENDING"
)
