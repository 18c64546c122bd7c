package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Stream - клиентская подписка на события поста.
type Stream struct {
	conn   *websocket.Conn
	events chan Event
	err    error
	done   chan struct{}
}

// StreamURL строит адрес websocket-потока по базовому http(s)-адресу API.
func StreamURL(baseURL, postID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/posts/" + url.PathEscape(postID) + "/comments/stream"
	return u.String(), nil
}

// Dial подключается к потоку событий поста postID.
func Dial(ctx context.Context, baseURL, postID, token string) (*Stream, error) {
	target, err := StreamURL(baseURL, postID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %s: %w", target, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

func (s *Stream) read() {
	defer close(s.events)
	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				s.err = err
			}
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Events закрывается, когда соединение завершено.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Err - причина обрыва соединения. Имеет смысл после закрытия Events.
func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return s.conn.Close()
}

// Pump пишет события из ch в conn, пока ch не закроется или клиент не отключится.
func Pump(ctx context.Context, conn *websocket.Conn, ch <-chan Event) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	// Читатель нужен, чтобы обрабатывать close и pong от клиента.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}
