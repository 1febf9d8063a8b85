package ports

import (
	"context"
	"encoding/json"
	"time"

	"speechpanel/internal/domain"
)

// CommandSender issues RPC commands to a backend module. A zero timeout
// selects the channel default.
type CommandSender interface {
	SendCommand(ctx context.Context, command string, module string, params map[string]any, timeout time.Duration) (json.RawMessage, error)
}

// ConfigCache stores the latest known configuration per backend module.
type ConfigCache interface {
	// ModuleConfig returns the cached snapshot, fetching it on first use.
	ModuleConfig(ctx context.Context, module string) (json.RawMessage, error)
	// ReloadModuleConfig refetches and replaces the snapshot.
	ReloadModuleConfig(ctx context.Context, module string) (json.RawMessage, error)
}

// Notifier shows toasts to the user.
type Notifier interface {
	Notify(level domain.ToastLevel, message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, title string, message string, confirmLabel string) (bool, error)
}

// Subscription is a handle on an event bus registration.
type Subscription interface {
	Unsubscribe()
}

// EventSubscriber registers handlers for backend push events.
type EventSubscriber interface {
	Subscribe(topic string, handler func(domain.PushEvent)) Subscription
}

// EventPublisher fans backend push events out to subscribers.
type EventPublisher interface {
	Publish(event domain.PushEvent)
}

// StateSink receives every new panel snapshot.
type StateSink interface {
	PanelStateChanged(state domain.PanelState)
}
