package usecase

import (
	"context"
	"errors"
	"sync"

	"speechpanel/internal/domain"
	"speechpanel/internal/ports"
)

var (
	ErrNoProviderSelected  = errors.New("no provider selected")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrRecordingInProgress = errors.New("hotword recording already in progress")
	ErrHotwordTokenUnset   = errors.New("hotword token is not set")
)

const (
	msgBuilding            = "Building your hotword voice model (can last few minutes)..."
	msgTokenSaved          = "Snowboy token saved"
	msgRecording           = "Recording hotword (5 seconds)..."
	msgRecordingTerminated = "Recording terminated"
	msgResetTitle          = "Reset hot-word?"
	msgResetBody           = "Your hot-word voice model and all recordings will be deleted and not recoverable!"
	msgResetConfirm        = "Reset"
	msgResetDone           = "Hotword reset"
	msgServiceEnabled      = "Speech recognition service enabled"
	msgServiceDisabled     = "Speech recognition service disabled"
	msgProviderSaved       = "Provider saved"
	msgTestStarted         = "Hotword test started: say your hotword and you should see notification"
	msgTestStopped         = "Hotword test stopped"
	msgHotwordDetected     = "Hotword detected"
)

// PanelController holds the speech recognition panel view state and
// dispatches user actions to the SpeechService.
type PanelController struct {
	speech    *SpeechService
	cache     ports.ConfigCache
	notifier  ports.Notifier
	confirmer ports.Confirmer
	events    ports.EventSubscriber
	sink      ports.StateSink

	mu              sync.Mutex
	config          *domain.ModuleConfig
	provider        *domain.Provider
	newHotwordToken string
	isRecording     bool
	testing         bool

	subMu        sync.Mutex
	subscription ports.Subscription
}

// NewPanelController builds a controller with no config loaded; call Mount to load it.
func NewPanelController(
	speech *SpeechService,
	cache ports.ConfigCache,
	notifier ports.Notifier,
	confirmer ports.Confirmer,
	events ports.EventSubscriber,
	sink ports.StateSink,
) *PanelController {
	return &PanelController{
		speech:    speech,
		cache:     cache,
		notifier:  notifier,
		confirmer: confirmer,
		events:    events,
		sink:      sink,
	}
}

// Mount subscribes to hotword detections and loads the configuration.
func (c *PanelController) Mount(ctx context.Context) error {
	c.subMu.Lock()
	if c.subscription == nil && c.events != nil {
		c.subscription = c.events.Subscribe(domain.EventHotwordDetected, c.onHotwordDetected)
	}
	c.subMu.Unlock()

	return c.ReloadConfig(ctx)
}

// Close releases the event subscription.
func (c *PanelController) Close() {
	c.subMu.Lock()
	sub := c.subscription
	c.subscription = nil
	c.subMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// State returns the current panel snapshot.
func (c *PanelController) State() domain.PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// IsRecordButtonDisabled reports whether control id must be disabled.
func (c *PanelController) IsRecordButtonDisabled(id domain.ButtonID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return recordButtonDisabled(id, c.isRecording, c.hotwordLocked())
}

// ReloadConfig replaces the held configuration with the cached snapshot and
// re-selects the active provider.
func (c *PanelController) ReloadConfig(ctx context.Context) error {
	raw, err := c.cache.ModuleConfig(ctx, domain.Module)
	if err != nil {
		return err
	}
	cfg, err := domain.DecodeModuleConfig(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.config = &cfg
	c.newHotwordToken = cfg.HotwordToken
	c.provider = nil
	if provider, ok := cfg.ActiveProvider(); ok {
		c.provider = &provider
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
	return nil
}

// SetNewHotwordToken edits the token buffer saved by SetHotwordToken.
func (c *PanelController) SetNewHotwordToken(token string) {
	c.mu.Lock()
	c.newHotwordToken = token
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

// SelectProvider selects the configured provider whose id reads as id. The
// first match wins when a number and a string share the same text.
func (c *PanelController) SelectProvider(id string) error {
	c.mu.Lock()
	if c.config == nil {
		c.mu.Unlock()
		return ErrUnknownProvider
	}
	var selected *domain.Provider
	for _, provider := range c.config.Providers {
		if provider.ID.String() == id {
			p := provider
			selected = &p
			break
		}
	}
	if selected == nil {
		c.mu.Unlock()
		return ErrUnknownProvider
	}
	c.provider = selected
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
	return nil
}

// SetProviderAPIKey edits the api key of the selected provider.
func (c *PanelController) SetProviderAPIKey(apikey string) error {
	c.mu.Lock()
	if c.provider == nil {
		c.mu.Unlock()
		return ErrNoProviderSelected
	}
	edited := *c.provider
	edited.APIKey = apikey
	c.provider = &edited
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
	return nil
}

// BuildHotword asks the backend to build the voice model.
func (c *PanelController) BuildHotword(ctx context.Context) error {
	if c.hotwordToken() == "" {
		return ErrHotwordTokenUnset
	}
	if err := c.speech.BuildHotword(ctx); err != nil {
		return err
	}
	c.notifier.Notify(domain.ToastLoading, msgBuilding)
	return nil
}

// SetHotwordToken saves the edited token.
func (c *PanelController) SetHotwordToken(ctx context.Context) error {
	c.mu.Lock()
	token := c.newHotwordToken
	c.mu.Unlock()

	if err := c.speech.SetHotwordToken(ctx, token); err != nil {
		return err
	}
	c.notifier.Notify(domain.ToastSuccess, msgTokenSaved)
	return c.ReloadConfig(ctx)
}

// RecordHotword records one hotword sample. The recording flag is cleared
// whatever the outcome.
func (c *PanelController) RecordHotword(ctx context.Context) error {
	c.mu.Lock()
	if c.isRecording {
		c.mu.Unlock()
		return ErrRecordingInProgress
	}
	if c.hotwordLocked().Token == "" {
		c.mu.Unlock()
		return ErrHotwordTokenUnset
	}
	c.isRecording = true
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
	defer c.setRecording(false)

	c.notifier.Notify(domain.ToastLoading, msgRecording)
	if err := c.speech.RecordHotword(ctx); err != nil {
		return err
	}
	if err := c.ReloadConfig(ctx); err != nil {
		return err
	}

	if c.hotwordTraining() {
		c.notifier.Notify(domain.ToastLoading, msgBuilding)
	} else {
		c.notifier.Notify(domain.ToastSuccess, msgRecordingTerminated)
	}
	return nil
}

// ResetHotword deletes all recordings and the model after confirmation.
// Declining is not an error.
func (c *PanelController) ResetHotword(ctx context.Context) error {
	confirmed, err := c.confirmer.Confirm(ctx, msgResetTitle, msgResetBody, msgResetConfirm)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	if err := c.speech.ResetHotword(ctx); err != nil {
		return err
	}
	c.notifier.Notify(domain.ToastSuccess, msgResetDone)
	return c.ReloadConfig(ctx)
}

// ToggleServiceActivation enables the service when disabled and the other
// way around.
func (c *PanelController) ToggleServiceActivation(ctx context.Context) error {
	var err error
	if c.serviceEnabled() {
		err = c.speech.DisableService(ctx)
	} else {
		err = c.speech.EnableService(ctx)
	}
	if err != nil {
		return err
	}

	if err := c.ReloadConfig(ctx); err != nil {
		return err
	}
	if c.serviceEnabled() {
		c.notifier.Notify(domain.ToastSuccess, msgServiceEnabled)
	} else {
		c.notifier.Notify(domain.ToastSuccess, msgServiceDisabled)
	}
	return nil
}

// SetProvider saves the selected provider and its api key.
func (c *PanelController) SetProvider(ctx context.Context) error {
	c.mu.Lock()
	var selected domain.Provider
	ok := c.provider != nil
	if ok {
		selected = *c.provider
	}
	c.mu.Unlock()
	if !ok {
		return ErrNoProviderSelected
	}

	if err := c.speech.SetProvider(ctx, selected.ID, selected.APIKey); err != nil {
		return err
	}
	c.notifier.Notify(domain.ToastSuccess, msgProviderSaved)
	return c.ReloadConfig(ctx)
}

// StartHotwordTest enters test mode so hotword detections raise toasts.
func (c *PanelController) StartHotwordTest(ctx context.Context) error {
	if err := c.speech.StartHotwordTest(ctx); err != nil {
		return err
	}
	c.setTesting(true)
	c.notifier.Notify(domain.ToastSuccess, msgTestStarted)
	return c.ReloadConfig(ctx)
}

// StopHotwordTest leaves test mode.
func (c *PanelController) StopHotwordTest(ctx context.Context) error {
	if err := c.speech.StopHotwordTest(ctx); err != nil {
		return err
	}
	c.setTesting(false)
	c.notifier.Notify(domain.ToastSuccess, msgTestStopped)
	return c.ReloadConfig(ctx)
}

func (c *PanelController) onHotwordDetected(domain.PushEvent) {
	c.mu.Lock()
	testing := c.testing
	c.mu.Unlock()

	if testing {
		c.notifier.Notify(domain.ToastInfo, msgHotwordDetected)
	}
}

func (c *PanelController) setRecording(recording bool) {
	c.mu.Lock()
	c.isRecording = recording
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

func (c *PanelController) setTesting(testing bool) {
	c.mu.Lock()
	c.testing = testing
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

func (c *PanelController) hotwordToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hotwordLocked().Token
}

func (c *PanelController) hotwordTraining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hotwordLocked().Training
}

func (c *PanelController) serviceEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config != nil && c.config.ServiceEnabled
}

func (c *PanelController) hotwordLocked() domain.HotwordConfig {
	if c.config == nil {
		return domain.HotwordConfig{}
	}
	return c.config.Hotword()
}

func (c *PanelController) stateLocked() domain.PanelState {
	state := domain.PanelState{
		NewHotwordToken: c.newHotwordToken,
		IsRecording:     c.isRecording,
		Testing:         c.testing,
		ServiceStatus:   domain.ServiceStatusNotRunning,
	}
	if c.config != nil {
		state.Providers = append([]domain.Provider(nil), c.config.Providers...)
		state.HotwordToken = c.config.HotwordToken
		state.HotwordRecordings = c.config.HotwordRecordings
		state.HotwordModel = c.config.HotwordModel
		state.HotwordTraining = c.config.HotwordTraining
		state.ServiceEnabled = c.config.ServiceEnabled
		state.ServiceStatus = c.config.ServiceStatus()
	}
	if c.provider != nil {
		provider := *c.provider
		state.Provider = &provider
	}

	hotword := c.hotwordLocked()
	for i, id := range domain.Buttons {
		state.Disabled[i] = recordButtonDisabled(id, c.isRecording, hotword)
	}
	return state
}

func (c *PanelController) publish(state domain.PanelState) {
	if c.sink != nil {
		c.sink.PanelStateChanged(state)
	}
}
