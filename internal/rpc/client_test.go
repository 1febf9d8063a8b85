package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"speechpanel/internal/domain"
)

func TestSendCommandRoundTrip(t *testing.T) {
	is := is.New(t)

	requests := make(chan envelope, 1)
	url := newBackend(t, func(conn *websocket.Conn) {
		var req envelope
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		requests <- req
		_ = conn.WriteJSON(envelope{Type: typeResponse, ID: req.ID, Data: json.RawMessage(`{"ok":true}`)})
		drain(conn)
	})

	client := dialTest(t, url, nil)
	data, err := client.SendCommand(context.Background(), "set_hotword_token", domain.Module, map[string]any{"token": "abc"}, 20*time.Second)
	is.NoErr(err)
	is.Equal(string(data), `{"ok":true}`)

	req := <-requests
	is.Equal(req.Type, typeCommand)
	is.Equal(req.To, domain.Module)
	is.Equal(req.Command, "set_hotword_token")
	is.Equal(req.Params["token"], "abc")
	is.Equal(req.Timeout, 20.0)
	is.True(req.ID != "") // every command carries a correlation id
}

func TestSendCommandWithoutParamsOmitsThem(t *testing.T) {
	is := is.New(t)

	raw := make(chan string, 1)
	url := newBackend(t, func(conn *websocket.Conn) {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		raw <- string(payload)
		var req envelope
		_ = json.Unmarshal(payload, &req)
		_ = conn.WriteJSON(envelope{Type: typeResponse, ID: req.ID})
		drain(conn)
	})

	client := dialTest(t, url, nil)
	_, err := client.SendCommand(context.Background(), "build_hotword", domain.Module, nil, 0)
	is.NoErr(err)
	payload := <-raw
	is.True(!strings.Contains(payload, `"params"`))  // nil params are not sent
	is.True(!strings.Contains(payload, `"timeout"`)) // zero timeout is left to the backend
}

func TestSendCommandZeroTimeoutUsesClientDefault(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, drain)

	client, err := Dial(context.Background(), Config{URL: url, DefaultTimeout: 50 * time.Millisecond}, nil, nil)
	is.NoErr(err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.SendCommand(context.Background(), "build_hotword", domain.Module, nil, 0)
	is.True(errors.Is(err, ErrTimeout)) // the client default still bounds the wait
}

func TestSendCommandBackendError(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, func(conn *websocket.Conn) {
		var req envelope
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(envelope{Type: typeResponse, ID: req.ID, Error: true, Message: "invalid token"})
		drain(conn)
	})

	client := dialTest(t, url, nil)
	_, err := client.SendCommand(context.Background(), "set_hotword_token", domain.Module, nil, 0)

	var cmdErr *CommandError
	is.True(errors.As(err, &cmdErr)) // backend failures are typed
	is.Equal(cmdErr.Message, "invalid token")
	is.Equal(cmdErr.Command, "set_hotword_token")
}

func TestSendCommandTimeout(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, drain)

	client := dialTest(t, url, nil)
	_, err := client.SendCommand(context.Background(), "record_hotword", domain.Module, nil, 50*time.Millisecond)
	is.True(errors.Is(err, ErrTimeout)) // unanswered command times out
}

func TestSendCommandCallerCancel(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, drain)

	client := dialTest(t, url, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.SendCommand(ctx, "record_hotword", domain.Module, nil, time.Second)
	is.True(errors.Is(err, context.Canceled)) // caller cancellation is not reported as a timeout
}

func TestSendCommandAfterBackendDisconnect(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, func(conn *websocket.Conn) {
		var req envelope
		_ = conn.ReadJSON(&req)
	})

	client := dialTest(t, url, nil)
	_, err := client.SendCommand(context.Background(), "enable_service", domain.Module, nil, 5*time.Second)
	is.True(errors.Is(err, ErrClosed)) // in-flight command fails once the link drops

	<-client.Done()
	_, err = client.SendCommand(context.Background(), "enable_service", domain.Module, nil, 5*time.Second)
	is.True(errors.Is(err, ErrClosed)) // later commands fail fast
}

func TestPushEventsArePublished(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(envelope{
			Type:   typeEvent,
			Event:  domain.EventTrainingOK,
			UUID:   "evt-1",
			Params: map[string]any{"model": "/tmp/model.pmdl"},
		})
		drain(conn)
	})

	events := make(chanPublisher, 1)
	dialTest(t, url, events)

	select {
	case event := <-events:
		is.Equal(event.Name, domain.EventTrainingOK)
		is.Equal(event.UUID, "evt-1")
		is.Equal(event.Params["model"], "/tmp/model.pmdl")
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for push event")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	is := is.New(t)

	url := newBackend(t, drain)
	client, err := Dial(context.Background(), Config{URL: url}, nil, nil)
	is.NoErr(err)

	is.NoErr(client.Close())
	is.NoErr(client.Close())
	is.NoErr(client.Err()) // local close is not a connection error
}

func TestDialRequiresURL(t *testing.T) {
	is := is.New(t)

	_, err := Dial(context.Background(), Config{}, nil, nil)
	is.True(err != nil)
}

func TestWebsocketURL(t *testing.T) {
	is := is.New(t)

	got, err := websocketURL("http://localhost:8080/ws")
	is.NoErr(err)
	is.Equal(got, "ws://localhost:8080/ws")

	got, err = websocketURL(" https://panel.local/ws ")
	is.NoErr(err)
	is.Equal(got, "wss://panel.local/ws")

	_, err = websocketURL("ftp://panel.local")
	is.True(err != nil) // only websocket schemes are accepted
}

func TestCommandErrorMessage(t *testing.T) {
	is := is.New(t)

	err := &CommandError{Command: "reset_hotword", Module: domain.Module}
	is.True(strings.Contains(err.Error(), "unknown error"))
}

type chanPublisher chan domain.PushEvent

func (c chanPublisher) Publish(event domain.PushEvent) { c <- event }

func newBackend(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T, url string, events chanPublisher) *Client {
	t.Helper()

	var publisher interface{ Publish(domain.PushEvent) }
	if events != nil {
		publisher = events
	}
	client, err := Dial(context.Background(), Config{URL: url, DefaultTimeout: 2 * time.Second}, publisher, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
