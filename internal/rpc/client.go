package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"speechpanel/internal/domain"
	"speechpanel/internal/ports"
)

const defaultTimeout = 5 * time.Second

var (
	ErrClosed  = errors.New("backend connection closed")
	ErrTimeout = errors.New("backend command timed out")
)

// CommandError is a failure reported by the backend for one command.
type CommandError struct {
	Command string
	Module  string
	Message string
}

func (e *CommandError) Error() string {
	message := e.Message
	if message == "" {
		message = "backend returned an unknown error"
	}
	return fmt.Sprintf("%s command %q failed: %s", e.Module, e.Command, message)
}

// Config controls the backend websocket channel.
type Config struct {
	URL            string
	DefaultTimeout time.Duration
}

// Client implements ports.CommandSender over a websocket and republishes
// backend push events.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	events ports.EventPublisher
	logger *slog.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan envelope

	done      chan struct{}
	closeOnce sync.Once

	errMu   sync.Mutex
	err     error
	closing bool
}

// Dial connects to the backend and starts reading responses and events.
func Dial(ctx context.Context, cfg Config, events ports.EventPublisher, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("backend URL is not configured")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	wsURL, err := websocketURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to backend websocket: %w", err)
	}
	logger.Info("connected to backend", "url", wsURL)

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		events:  events,
		logger:  logger,
		pending: make(map[string]chan envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SendCommand sends one command and waits for its response. A zero timeout
// leaves the envelope field unset and waits for the client default.
func (c *Client) SendCommand(ctx context.Context, command string, module string, params map[string]any, timeout time.Duration) (json.RawMessage, error) {
	wait := timeout
	if wait <= 0 {
		timeout = 0
		wait = c.cfg.DefaultTimeout
	}

	id := uuid.NewString()
	reply := make(chan envelope, 1)
	if err := c.register(id, reply); err != nil {
		return nil, err
	}
	defer c.unregister(id)

	callCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	request := envelope{
		Type:    typeCommand,
		ID:      id,
		To:      module,
		Command: command,
		Params:  params,
		Timeout: timeout.Seconds(),
	}
	if err := c.write(request); err != nil {
		return nil, err
	}
	c.logger.Debug("command sent", "command", command, "module", module, "id", id)

	select {
	case response := <-reply:
		if response.Error {
			return nil, &CommandError{Command: command, Module: module, Message: response.Message}
		}
		return response.Data, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-callCtx.Done():
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%s command %q after %s: %w", module, command, wait, ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close shuts the connection down and waits for the reader to exit.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.closing = true
		c.errMu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *Client) register(id string, reply chan envelope) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending[id] = reply
	return nil
}

func (c *Client) unregister(id string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	delete(c.pending, id)
}

func (c *Client) write(message envelope) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", message.Command, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s command: %w", message.Command, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}

		var message envelope
		if err := json.Unmarshal(payload, &message); err != nil {
			c.logger.Warn("dropping malformed backend message", "err", err)
			continue
		}

		switch message.Type {
		case typeResponse:
			c.deliver(message)
		case typeEvent:
			c.logger.Debug("backend event", "event", message.Event, "uuid", message.UUID)
			if c.events != nil {
				c.events.Publish(domain.PushEvent{Name: message.Event, UUID: message.UUID, Params: message.Params})
			}
		default:
			c.logger.Warn("dropping unknown backend message", "type", message.Type)
		}
	}
}

func (c *Client) deliver(message envelope) {
	c.pendingMu.Lock()
	reply, ok := c.pending[message.ID]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("dropping response without pending command", "id", message.ID)
		return
	}

	select {
	case reply <- message:
	default:
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.closing || c.err != nil {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	c.err = err
	c.logger.Error("backend connection lost", "err", err)
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return ErrClosed
}

func websocketURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid backend URL scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}
