package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Module is the backend module every command and event is scoped to.
const Module = "speechrecognition"

// Push events emitted by the backend module.
const (
	EventHotwordDetected = "speechrecognition.hotword.detected"
	EventTrainingOK      = "speechrecognition.training.ok"
	EventTrainingKO      = "speechrecognition.training.ko"
)

// ServiceStatus summarizes the recognition service runtime state.
type ServiceStatus string

const (
	ServiceStatusNotRunning ServiceStatus = "not-running"
	ServiceStatusRunning    ServiceStatus = "running"
	ServiceStatusTesting    ServiceStatus = "testing"
)

// DeriveServiceStatus maps the two backend flags to a status. Testing wins.
func DeriveServiceStatus(testing bool, running bool) ServiceStatus {
	switch {
	case testing:
		return ServiceStatusTesting
	case running:
		return ServiceStatusRunning
	default:
		return ServiceStatusNotRunning
	}
}

// ButtonID identifies a hotword panel control.
type ButtonID int

const (
	ButtonRecord1 ButtonID = iota
	ButtonRecord2
	ButtonRecord3
	ButtonBuild
	ButtonReset
)

// Buttons lists every control in display order.
var Buttons = [...]ButtonID{ButtonRecord1, ButtonRecord2, ButtonRecord3, ButtonBuild, ButtonReset}

// ToastLevel is the severity of a user notification.
type ToastLevel string

const (
	ToastLoading ToastLevel = "loading"
	ToastSuccess ToastLevel = "success"
	ToastInfo    ToastLevel = "info"
	ToastError   ToastLevel = "error"
)

// ProviderID identifies a provider. The backend sends either JSON strings or
// JSON numbers; the form is kept so the id is written back exactly as read.
// Two ids are equal only when both value and form match.
type ProviderID struct {
	value   string
	numeric bool
}

// StringID returns an id sent as a JSON string.
func StringID(value string) ProviderID {
	return ProviderID{value: value}
}

// NumberID returns an id sent as a JSON number.
func NumberID(n json.Number) (ProviderID, error) {
	var f float64
	if n == "" || n == "null" || json.Unmarshal([]byte(n), &f) != nil {
		return ProviderID{}, fmt.Errorf("invalid numeric provider id %q", string(n))
	}
	return ProviderID{value: n.String(), numeric: true}, nil
}

// String returns the id text without quoting.
func (id ProviderID) String() string { return id.value }

func (id ProviderID) IsZero() bool { return id == ProviderID{} }

func (id ProviderID) IsNumeric() bool { return id.numeric }

func (id *ProviderID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ProviderID{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("invalid provider id %s: %w", trimmed, err)
	}
	parsed, err := NumberID(n)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ProviderID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// Provider is a selectable speech-recognition backend.
type Provider struct {
	ID     ProviderID `json:"id"`
	Label  string     `json:"label,omitempty"`
	APIKey string     `json:"apikey"`
}

// Recordings tracks which of the three hotword samples exist.
type Recordings [3]bool

// Complete reports whether every sample has been recorded.
func (r Recordings) Complete() bool {
	return r[0] && r[1] && r[2]
}

// HotwordConfig is the wake-word part of the module configuration.
type HotwordConfig struct {
	Token      string     `json:"token"`
	Recordings Recordings `json:"recordings"`
	Model      bool       `json:"model"`
	Training   bool       `json:"training"`
}

// ModuleConfig is the configuration snapshot served by the backend.
// A null hotword token decodes to the empty string, meaning unset.
type ModuleConfig struct {
	HotwordToken      string     `json:"hotwordtoken"`
	HotwordRecordings Recordings `json:"hotwordrecordings"`
	HotwordModel      bool       `json:"hotwordmodel"`
	HotwordTraining   bool       `json:"hotwordtraining"`
	ServiceEnabled    bool       `json:"serviceenabled"`
	ServiceRunning    bool       `json:"servicerunning"`
	Testing           bool       `json:"testing"`
	Providers         []Provider `json:"providers"`
	ProviderID        ProviderID `json:"providerid"`
}

// DecodeModuleConfig parses a raw cached configuration.
func DecodeModuleConfig(raw []byte) (ModuleConfig, error) {
	var cfg ModuleConfig
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, fmt.Errorf("empty %s module config", Module)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ModuleConfig{}, fmt.Errorf("failed to decode %s module config: %w", Module, err)
	}
	return cfg, nil
}

// Hotword extracts the wake-word settings.
func (c ModuleConfig) Hotword() HotwordConfig {
	return HotwordConfig{
		Token:      c.HotwordToken,
		Recordings: c.HotwordRecordings,
		Model:      c.HotwordModel,
		Training:   c.HotwordTraining,
	}
}

// ServiceStatus derives the status shown in the panel.
func (c ModuleConfig) ServiceStatus() ServiceStatus {
	return DeriveServiceStatus(c.Testing, c.ServiceRunning)
}

// ActiveProvider returns the provider whose id matches ProviderID.
func (c ModuleConfig) ActiveProvider() (Provider, bool) {
	var (
		active Provider
		found  bool
	)
	for _, provider := range c.Providers {
		if !provider.ID.IsZero() && provider.ID == c.ProviderID {
			active = provider
			found = true
		}
	}
	return active, found
}

// PushEvent is an out-of-band notification pushed by the backend.
type PushEvent struct {
	Name   string         `json:"name"`
	UUID   string         `json:"uuid"`
	Params map[string]any `json:"params,omitempty"`
}

// PanelState is the immutable view of the panel pushed to the UI.
type PanelState struct {
	Providers         []Provider    `json:"providers"`
	Provider          *Provider     `json:"provider"`
	HotwordToken      string        `json:"hotwordToken"`
	NewHotwordToken   string        `json:"newHotwordToken"`
	HotwordRecordings Recordings    `json:"hotwordRecordings"`
	HotwordModel      bool          `json:"hotwordModel"`
	HotwordTraining   bool          `json:"hotwordTraining"`
	ServiceEnabled    bool          `json:"serviceEnabled"`
	ServiceStatus     ServiceStatus `json:"serviceStatus"`
	IsRecording       bool          `json:"isRecording"`
	Testing           bool          `json:"testing"`
	Disabled          [5]bool       `json:"disabled"`
}
