// Package client is the action layer: it wires the session manager, REST
// gateway, push channel, reconciliation engine and state store together and
// exposes the operations a UI drives. All store access is serialized behind
// one mutex: between any two suspension points a mutation is atomic.
package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chatx/chatx-go/internal/api"
	"github.com/chatx/chatx-go/internal/config"
	"github.com/chatx/chatx-go/internal/errs"
	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/model"
	"github.com/chatx/chatx-go/internal/push"
	"github.com/chatx/chatx-go/internal/reconcile"
	"github.com/chatx/chatx-go/internal/session"
	"github.com/chatx/chatx-go/internal/state"
)

type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeOK    NoticeKind = "ok"
	NoticeError NoticeKind = "error"
)

// Notifier receives short transient notices. Rendering is out of scope here;
// the CLI prints them, a UI would show toasts.
type Notifier interface {
	Notice(kind NoticeKind, text string)
}

// NopNotifier discards notices; useful in tests.
type NopNotifier struct{}

func (NopNotifier) Notice(NoticeKind, string) {}

// Client owns the synchronized local view of one ChatX account.
type Client struct {
	cfg      *config.Config
	sessions *session.Manager
	gateway  *api.Gateway
	channel  *push.Channel
	engine   *reconcile.Engine
	notifier Notifier
	validate *validator.Validate

	mu     sync.Mutex
	store  *state.Store
	health *model.Health
}

// New assembles a Client from configuration. The credential persists in
// cfg.CredentialFile when set, in memory otherwise.
func New(cfg *config.Config, notifier Notifier) *Client {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	var credStore session.CredentialStore
	if cfg.CredentialFile != "" {
		credStore = session.NewFile(cfg.CredentialFile)
	} else {
		credStore = session.NewMemory()
	}
	sessions := session.NewManager(credStore)

	c := &Client{
		cfg:      cfg,
		sessions: sessions,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		store:    state.NewStore(),
	}
	c.gateway = api.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, sessions)
	c.channel = push.NewChannel(cfg.APIBaseURL, cfg.WSPath, cfg.ReconnectDelay, sessions, c)
	c.engine = reconcile.NewEngine(c.store, func() int64 {
		if id := sessions.Identity(); id != nil {
			return id.UserID
		}
		return 0
	})
	return c
}

// Start hydrates a persisted session, connects the push channel when one is
// held, and runs the periodic health poll until ctx is canceled.
func (c *Client) Start(ctx context.Context) {
	if c.sessions.Hydrate() {
		id := c.sessions.Identity()
		logger.Infof("client: session hydrated for user #%d", id.UserID)
		c.RefreshAll(ctx)
		c.channel.Connect()
	} else {
		if _, err := c.FetchHealth(ctx); err != nil {
			logger.Errorf("client: health: %v", err)
		}
	}

	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.channel.ManualClose()
			return
		case <-ticker.C:
			if _, err := c.FetchHealth(ctx); err != nil {
				logger.Errorf("client: health: %v", err)
			}
		}
	}
}

// Identity returns the authenticated identity, nil when logged out.
func (c *Client) Identity() *model.Identity { return c.sessions.Identity() }

// PushState returns the push channel's connection state.
func (c *Client) PushState() push.State { return c.channel.State() }

// LastHealth returns the most recent health payload, nil before the first
// successful poll.
func (c *Client) LastHealth() *model.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// Chats returns the cached chat list.
func (c *Client) Chats() []model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Chats()
}

// Users returns the cached user list.
func (c *Client) Users() []model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Users()
}

// Messages returns the loaded message window.
func (c *Client) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

// SelectedChat returns the selected chat, nil when none.
func (c *Client) SelectedChat() *model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SelectedChat()
}

// HandleEvent implements push.Handler: the reconciliation engine mutates the
// store under the client mutex, then the requested follow-ups run outside it.
func (c *Client) HandleEvent(ev push.Event) {
	c.mu.Lock()
	effect := c.engine.Apply(ev)
	c.mu.Unlock()

	if effect.MarkRead != 0 {
		// Best-effort read receipt; not essential to correctness, so a
		// failure stays out of the user's face.
		go c.silentMarkRead(effect.MarkRead)
	}
	if effect.RefreshChats {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPTimeout)
			defer cancel()
			if err := c.RefreshChats(ctx, ""); err != nil {
				logger.Errorf("client: refresh after unknown-chat event: %v", err)
			}
		}()
	}
	if effect.Notice != "" {
		c.notifier.Notice(NoticeInfo, effect.Notice)
	}
}

// HandleTransportError implements push.Handler. A single malformed frame is
// deliberately not surfaced to the user; the channel already logged it.
func (c *Client) HandleTransportError(err error) {
	logger.Debugf("client: transport: %v", err)
}

// HandleStateChange implements push.Handler.
func (c *Client) HandleStateChange(s push.State) {
	logger.Infof("client: push %s", s)
}

func (c *Client) silentMarkRead(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPTimeout)
	defer cancel()
	if err := c.gateway.MarkChatRead(ctx, chatID); err != nil {
		logger.Errorf("client: mark read chat=%d: %v", chatID, err)
		return
	}
	c.mu.Lock()
	c.store.ZeroUnread(chatID)
	c.mu.Unlock()
}

// validationError converts the first validator failure into the local error
// taxonomy.
func (c *Client) validationError(err error) error {
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errs.Validationf(fe.Field(), "failed %q constraint", fe.Tag())
	}
	return errs.Validationf("", "%v", err)
}
