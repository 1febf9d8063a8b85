package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"speechpanel/internal/domain"
	"speechpanel/internal/eventbus"
)

type sentCommand struct {
	command string
	module  string
	params  map[string]any
	timeout time.Duration
}

type fakeSender struct {
	mu       sync.Mutex
	commands []sentCommand
	errs     map[string]error
	hooks    map[string]func()
}

func (f *fakeSender) SendCommand(_ context.Context, command string, module string, params map[string]any, timeout time.Duration) (json.RawMessage, error) {
	f.mu.Lock()
	f.commands = append(f.commands, sentCommand{command: command, module: module, params: params, timeout: timeout})
	err := f.errs[command]
	hook := f.hooks[command]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`true`), nil
}

func (f *fakeSender) failOn(command string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[command] = err
}

func (f *fakeSender) onCommand(command string, hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hooks == nil {
		f.hooks = make(map[string]func())
	}
	f.hooks[command] = hook
}

func (f *fakeSender) sent() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCommand, len(f.commands))
	copy(out, f.commands)
	return out
}

// fakeCache serves a configurable module config; a pending "next" config
// replaces the current one on reload, like the backend would after a
// mutating command.
type fakeCache struct {
	mu      sync.Mutex
	current domain.ModuleConfig
	next    *domain.ModuleConfig
	reloads int
	getErr  error
	loadErr error
}

func (f *fakeCache) ModuleConfig(_ context.Context, module string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if module != domain.Module {
		return nil, errors.New("unexpected module " + module)
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return json.Marshal(f.current)
}

func (f *fakeCache) ReloadModuleConfig(_ context.Context, _ string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.next != nil {
		f.current = *f.next
		f.next = nil
	}
	return json.Marshal(f.current)
}

func (f *fakeCache) set(cfg domain.ModuleConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = cfg
}

func (f *fakeCache) setNext(cfg domain.ModuleConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = &cfg
}

func (f *fakeCache) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

type toast struct {
	level   domain.ToastLevel
	message string
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []toast
}

func (f *fakeNotifier) Notify(level domain.ToastLevel, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast{level: level, message: message})
}

func (f *fakeNotifier) snapshot() []toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]toast, len(f.toasts))
	copy(out, f.toasts)
	return out
}

func (f *fakeNotifier) last() toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toasts) == 0 {
		return toast{}
	}
	return f.toasts[len(f.toasts)-1]
}

type fakeConfirmer struct {
	answer bool
	err    error
	asked  int
	title  string
}

func (f *fakeConfirmer) Confirm(_ context.Context, title string, _ string, _ string) (bool, error) {
	f.asked++
	f.title = title
	return f.answer, f.err
}

type fakeSink struct {
	mu     sync.Mutex
	states []domain.PanelState
}

func (f *fakeSink) PanelStateChanged(state domain.PanelState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeSink) snapshot() []domain.PanelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PanelState, len(f.states))
	copy(out, f.states)
	return out
}

type panelHarness struct {
	sender    *fakeSender
	cache     *fakeCache
	notifier  *fakeNotifier
	confirmer *fakeConfirmer
	sink      *fakeSink
	bus       *eventbus.Bus
	service   *SpeechService
	panel     *PanelController
}

func newPanelHarness(t *testing.T, cfg domain.ModuleConfig) *panelHarness {
	t.Helper()

	h := &panelHarness{
		sender:    &fakeSender{},
		cache:     &fakeCache{current: cfg},
		notifier:  &fakeNotifier{},
		confirmer: &fakeConfirmer{},
		sink:      &fakeSink{},
		bus:       eventbus.New(),
	}
	h.service = NewSpeechService(h.sender, h.cache, h.notifier, h.bus, Timeouts{}, nil)
	h.panel = NewPanelController(h.service, h.cache, h.notifier, h.confirmer, h.bus, h.sink)
	if err := h.panel.Mount(context.Background()); err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	t.Cleanup(func() {
		h.panel.Close()
		h.service.Close()
	})
	return h
}

func readyConfig() domain.ModuleConfig {
	return domain.ModuleConfig{
		HotwordToken: "snowboy-token",
		Providers: []domain.Provider{
			{ID: domain.StringID("google"), APIKey: "g-key"},
			{ID: domain.StringID("ibm"), APIKey: "i-key"},
		},
		ProviderID: domain.StringID("google"),
	}
}
