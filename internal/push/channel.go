// Package push owns the persistent transport: connect, auto-reconnect with a
// single-slot timer, manual-close semantics and inbound event dispatch. It
// never mutates client state itself; decoded events go to the Handler.
package push

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatx/chatx-go/internal/errs"
	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/session"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives decoded events and transport-level failures. Calls arrive
// from the channel's read goroutine, one at a time.
type Handler interface {
	HandleEvent(ev Event)
	HandleTransportError(err error)
	HandleStateChange(s State)
}

const handshakeTimeout = 10 * time.Second

// Channel is the push transport state machine.
//
// Invariant: at most one live connection and at most one pending reconnect
// timer exist at any instant. Scheduling a reconnect cancels the previous
// one; manual close cancels it outright and suppresses exactly the next
// auto-reconnect.
type Channel struct {
	apiBaseURL string
	wsPath     string
	delay      time.Duration
	sessions   *session.Manager
	handler    Handler
	dialer     *websocket.Dialer

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	gen         uint64 // bumped per successful dial; stale read loops see a mismatch
	dialSeq     uint64 // bumped per Connect; a completed dial must match to claim the slot
	manualClose bool
	reconnect   *time.Timer
}

// NewChannel builds a Channel over the session manager. apiBaseURL is the
// http(s) REST base; the ws scheme is derived from it.
func NewChannel(apiBaseURL, wsPath string, delay time.Duration, sessions *session.Manager, handler Handler) *Channel {
	return &Channel{
		apiBaseURL: apiBaseURL,
		wsPath:     wsPath,
		delay:      delay,
		sessions:   sessions,
		handler:    handler,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dialURL derives ws(s)://.../ws?token=<credential> from the REST base.
func (c *Channel) dialURL(credential string) (string, error) {
	u, err := url.Parse(c.apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.wsPath
	q := url.Values{}
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the push connection. No-op without an active session. An
// existing connection is closed first, so there is never more than one live
// connection.
// A failed handshake counts as a peer close: one reconnect is scheduled.
func (c *Channel) Connect() {
	credential, ok := c.sessions.Credential()
	if !ok {
		return
	}

	c.mu.Lock()
	c.cancelReconnectLocked()
	c.manualClose = false
	if c.conn != nil {
		// Replacing the live connection; its read loop will observe a stale
		// generation and stay quiet.
		c.gen++
		c.conn.Close()
		c.conn = nil
	}
	c.dialSeq++
	seq := c.dialSeq
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.notifyState(changed, StateConnecting)

	target, err := c.dialURL(credential)
	if err != nil {
		c.handler.HandleTransportError(&errs.TransportError{Err: err})
		c.mu.Lock()
		changed = c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		c.notifyState(changed, StateDisconnected)
		return
	}

	conn, _, err := c.dialer.Dial(target, nil)

	c.mu.Lock()
	if c.manualClose || seq != c.dialSeq {
		// Manually closed or superseded by a fresher Connect while the
		// handshake was in flight. A superseding Connect owns the state;
		// a manual close must land back in Disconnected.
		changed = false
		if c.manualClose {
			changed = c.setStateLocked(StateDisconnected)
		}
		c.mu.Unlock()
		c.notifyState(changed, StateDisconnected)
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		changed = c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		c.notifyState(changed, StateDisconnected)
		c.handler.HandleTransportError(errs.Transportf("connect: %v", err))
		c.scheduleReconnect()
		return
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	changed = c.setStateLocked(StateConnected)
	c.mu.Unlock()
	c.notifyState(changed, StateConnected)

	logger.Infof("push: connected")
	go c.readLoop(conn, gen)
}

// ManualClose closes the live connection and suppresses the next
// auto-reconnect. Used on logout or explicit disconnect.
func (c *Channel) ManualClose() {
	c.mu.Lock()
	c.cancelReconnectLocked()
	c.manualClose = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// readLoop consumes frames until the connection dies. A malformed frame is
// reported and discarded; it does not close the channel.
func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			logger.Errorf("push: dropping frame: %v", err)
			c.handler.HandleTransportError(&errs.TransportError{Err: err})
			continue
		}
		logger.Debugf("push: event %s", ev.Type())
		c.handler.HandleEvent(ev)
	}
}

// handleClose runs once per dead connection. The manual flag is consumed
// here, so it suppresses exactly one reconnect.
func (c *Channel) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// A newer connection replaced this one; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	changed := c.setStateLocked(StateDisconnected)
	manual := c.manualClose
	c.manualClose = false
	c.mu.Unlock()
	c.notifyState(changed, StateDisconnected)

	if manual {
		logger.Infof("push: closed")
		return
	}
	if websocket.IsUnexpectedCloseError(cause, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logger.Errorf("push: connection lost: %v", cause)
	}
	if c.sessions.Active() {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the single reconnect slot, replacing any pending one.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manualClose {
		// A ManualClose landed after the caller dropped the lock; the
		// suppression still wins over this schedule.
		return
	}
	c.cancelReconnectLocked()
	c.reconnect = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		c.mu.Unlock()
		if c.sessions.Active() {
			c.Connect()
		}
	})
}

func (c *Channel) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// setStateLocked records the new state and reports whether it changed; the
// caller notifies the handler after releasing the lock.
func (c *Channel) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Channel) notifyState(changed bool, s State) {
	if changed && c.handler != nil {
		c.handler.HandleStateChange(s)
	}
}
