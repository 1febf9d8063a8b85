package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"speechpanel/internal/bootstrap"
	"speechpanel/internal/config"
	"speechpanel/internal/domain"
	"speechpanel/internal/rpc"
	"speechpanel/internal/usecase"
)

const (
	eventToast = "speechpanel:toast"
	eventState = "speechpanel:state"
	eventError = "speechpanel:error"
)

const (
	errorCodeStartup = "startup"
	errorCodeCommand = "command"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	mu       sync.Mutex
	services bootstrap.Services
	panel    *usecase.PanelController
	cfg      config.Config
	bootErr  error

	emit   func(ctx context.Context, name string, data ...interface{})
	dialog func(ctx context.Context, options runtime.MessageDialogOptions) (string, error)
}

func NewApp(cfg config.Config) *App {
	return &App{
		cfg:    cfg,
		emit:   runtime.EventsEmit,
		dialog: runtime.MessageDialog,
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	ui := bootstrap.UI{Notifier: a, Confirmer: a, Sink: a}
	services, err := bootstrap.Build(ctx, a.cfg, ui)
	if err != nil {
		a.mu.Lock()
		a.bootErr = err
		a.mu.Unlock()
		slog.Error("startup failed", "err", err)
		a.PanelError(errorCodeStartup, err)
		return
	}

	a.mu.Lock()
	a.services = services
	a.panel = services.Panel
	a.mu.Unlock()

	if err := services.Panel.Mount(ctx); err != nil {
		slog.Warn("initial config load failed", "err", err)
		a.PanelError(errorCodeStartup, err)
	}
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	services := a.services
	a.services = bootstrap.Services{}
	a.panel = nil
	a.mu.Unlock()

	if err := services.Close(); err != nil {
		slog.Warn("shutdown failed", "err", err)
	}
}

// GetPanelState returns the current panel snapshot.
func (a *App) GetPanelState() domain.PanelState {
	panel, err := a.requireReady()
	if err != nil {
		return domain.PanelState{ServiceStatus: domain.ServiceStatusNotRunning, Disabled: [5]bool{true, true, true, true, true}}
	}
	return panel.State()
}

// IsRecordButtonDisabled reports whether control id (0-4) is disabled.
func (a *App) IsRecordButtonDisabled(id int) bool {
	panel, err := a.requireReady()
	if err != nil {
		return true
	}
	return panel.IsRecordButtonDisabled(domain.ButtonID(id))
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return map[string]string{
		"module":  domain.Module,
		"backend": a.cfg.Backend.URL,
	}
}

// ReloadConfig refreshes the panel from the cached module configuration.
func (a *App) ReloadConfig() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.ReloadConfig(ctx)
	})
}

// SetNewHotwordToken edits the token field without saving it.
func (a *App) SetNewHotwordToken(token string) error {
	panel, err := a.requireReady()
	if err != nil {
		return err
	}
	panel.SetNewHotwordToken(token)
	return nil
}

// SetHotwordToken saves token as the hotword token.
func (a *App) SetHotwordToken(token string) error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		panel.SetNewHotwordToken(token)
		return panel.SetHotwordToken(ctx)
	})
}

func (a *App) BuildHotword() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.BuildHotword(ctx)
	})
}

func (a *App) RecordHotword() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.RecordHotword(ctx)
	})
}

func (a *App) ResetHotword() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.ResetHotword(ctx)
	})
}

func (a *App) ToggleServiceActivation() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.ToggleServiceActivation(ctx)
	})
}

// SelectProvider changes the selected provider without saving it.
func (a *App) SelectProvider(id string) error {
	panel, err := a.requireReady()
	if err != nil {
		return err
	}
	return panel.SelectProvider(id)
}

// SetProvider selects provider id, applies apikey and saves both.
func (a *App) SetProvider(id string, apikey string) error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		if err := panel.SelectProvider(id); err != nil {
			return err
		}
		if err := panel.SetProviderAPIKey(apikey); err != nil {
			return err
		}
		return panel.SetProvider(ctx)
	})
}

func (a *App) StartHotwordTest() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.StartHotwordTest(ctx)
	})
}

func (a *App) StopHotwordTest() error {
	return a.run(func(ctx context.Context, panel *usecase.PanelController) error {
		return panel.StopHotwordTest(ctx)
	})
}

// Notify emits a toast to the frontend.
func (a *App) Notify(level domain.ToastLevel, message string) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventToast, map[string]string{
		"level":   string(level),
		"message": message,
	})
}

// PanelStateChanged emits panel snapshots to the frontend.
func (a *App) PanelStateChanged(state domain.PanelState) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventState, state)
}

// PanelError emits backend errors to the UI.
func (a *App) PanelError(code string, err error) {
	if a.ctx == nil || err == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"code":    code,
		"message": errorMessage(err),
		"detail":  err.Error(),
	})
}

// Confirm asks a yes/no question with a native dialog.
func (a *App) Confirm(_ context.Context, title string, message string, confirmLabel string) (bool, error) {
	if a.ctx == nil {
		return false, fmt.Errorf("application is not initialized")
	}
	selected, err := a.dialog(a.ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{confirmLabel, "Cancel"},
		DefaultButton: "Cancel",
		CancelButton:  "Cancel",
	})
	if err != nil {
		return false, err
	}
	return selected == confirmLabel || selected == "Yes", nil
}

func (a *App) run(action func(ctx context.Context, panel *usecase.PanelController) error) error {
	panel, err := a.requireReady()
	if err != nil {
		return err
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := action(ctx, panel); err != nil {
		a.PanelError(errorCodeCommand, err)
		return err
	}
	return nil
}

func (a *App) requireReady() (*usecase.PanelController, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bootErr != nil {
		return nil, a.bootErr
	}
	if a.panel == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return a.panel, nil
}

func errorMessage(err error) string {
	var commandErr *rpc.CommandError
	switch {
	case errors.Is(err, usecase.ErrNoProviderSelected):
		return "Select a provider first"
	case errors.Is(err, usecase.ErrUnknownProvider):
		return "Unknown provider"
	case errors.Is(err, usecase.ErrRecordingInProgress):
		return "A recording is already in progress"
	case errors.Is(err, usecase.ErrHotwordTokenUnset):
		return "Set your Snowboy token first"
	case errors.Is(err, rpc.ErrTimeout):
		return "Backend did not answer in time"
	case errors.Is(err, rpc.ErrClosed):
		return "Backend connection lost"
	case errors.As(err, &commandErr):
		return commandErr.Error()
	default:
		return "Unexpected error"
	}
}
