package client

import (
	"context"
	"strings"

	"github.com/chatx/chatx-go/internal/errs"
	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/model"
)

// The mutex is never held across a network call: a REST exchange is a
// suspension point, and the store is re-validated when the response lands.

type loginInput struct {
	Email    string `validate:"required,email,max=72"`
	Password string `validate:"required"`
}

// Login exchanges credentials for a bearer token, activates the session and
// brings the local view up.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if err := c.validate.Struct(loginInput{Email: email, Password: password}); err != nil {
		return c.validationError(err)
	}

	token, err := c.gateway.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.sessions.SetCredential(token); err != nil {
		return err
	}

	id := c.sessions.Identity()
	logger.Infof("client: logged in as user #%d", id.UserID)
	c.notifier.Notice(NoticeOK, "logged in as "+id.Username)

	c.RefreshAll(ctx)
	c.channel.Connect()
	return nil
}

type registerInput struct {
	Username string `validate:"required,max=50"`
	Email    string `validate:"required,email,max=72"`
	Password string `validate:"required,min=3,max=72"`
}

// Register creates an account. The backend mails an activation link; the
// session stays untouched until Login.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	input := registerInput{Username: username, Email: email, Password: password}
	if err := c.validate.Struct(input); err != nil {
		return c.validationError(err)
	}
	if err := c.gateway.Register(ctx, username, email, password); err != nil {
		return err
	}
	c.notifier.Notice(NoticeOK, "registered; check your email to activate the account")
	return nil
}

// Activate confirms an account with the mailed token.
func (c *Client) Activate(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errs.Validationf("token", "activation token is empty")
	}
	if err := c.gateway.Activate(ctx, token); err != nil {
		return err
	}
	c.notifier.Notice(NoticeOK, "account activated")
	return nil
}

// Logout closes the push channel, destroys the session and drops the local
// view. Safe to call when already logged out.
func (c *Client) Logout() {
	c.channel.ManualClose()
	c.sessions.Clear()
	c.mu.Lock()
	c.store.Reset()
	c.mu.Unlock()
	c.notifier.Notice(NoticeInfo, "logged out")
}

// FetchHealth polls the unauthenticated liveness endpoint.
func (c *Client) FetchHealth(ctx context.Context) (*model.Health, error) {
	health, err := c.gateway.Health(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.health = health
	c.mu.Unlock()
	return health, nil
}

// RefreshAll refreshes health, users and chats, tolerating partial failure:
// each leg that fails produces a notice, the rest still land.
func (c *Client) RefreshAll(ctx context.Context) {
	if _, err := c.FetchHealth(ctx); err != nil {
		c.notifier.Notice(NoticeError, err.Error())
	}
	if !c.sessions.Active() {
		return
	}
	if err := c.RefreshUsers(ctx, ""); err != nil {
		c.notifier.Notice(NoticeError, err.Error())
	}
	if err := c.RefreshChats(ctx, ""); err != nil {
		c.notifier.Notice(NoticeError, err.Error())
	}
}

// RefreshChats replaces the chat list snapshot. A selection pointing at a
// chat absent from the fresh snapshot is cleared by the store.
func (c *Client) RefreshChats(ctx context.Context, search string) error {
	chats, err := c.gateway.Chats(ctx, search)
	if err != nil {
		return err
	}
	c.mu.Lock()
	survived := c.store.ReplaceChats(chats)
	c.mu.Unlock()
	if !survived {
		logger.Infof("client: selected chat vanished from snapshot, selection cleared")
	}
	return nil
}

// RefreshUsers replaces the user list snapshot.
func (c *Client) RefreshUsers(ctx context.Context, search string) error {
	users, err := c.gateway.SearchUsers(ctx, sanitizeSearch(search), c.cfg.UsersPageLimit, 0)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.store.ReplaceUsers(users)
	c.mu.Unlock()
	return nil
}

// SelectChat makes chatID the selected chat and loads its message window.
// Selecting re-fetches the window every time: push application is scoped to
// the one selected chat, so the fetch is the catch-up.
func (c *Client) SelectChat(ctx context.Context, chatID int64) error {
	if !c.sessions.Active() {
		return errs.ErrAuthRequired
	}

	c.mu.Lock()
	ok := c.store.SelectChat(chatID)
	c.mu.Unlock()
	if !ok {
		return errs.Validationf("chat", "unknown chat #%d", chatID)
	}

	messages, err := c.gateway.ChatMessages(ctx, chatID)
	if err != nil {
		c.mu.Lock()
		// Keep the selection but leave the window empty; a retry refills it.
		c.store.SetWindow(nil)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.store.SelectedChatID() == chatID {
		c.store.SetWindow(messages)
	}
	c.mu.Unlock()

	go c.silentMarkRead(chatID)
	return nil
}

// SendMessage posts text to the selected chat and appends the server's echo
// to the window.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if !c.sessions.Active() {
		return errs.ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errs.Validationf("text", "message text is empty")
	}
	c.mu.Lock()
	chatID := c.store.SelectedChatID()
	c.mu.Unlock()
	if chatID == 0 {
		return errs.Validationf("chat", "no chat selected")
	}

	msg, err := c.gateway.SendMessage(ctx, chatID, text)
	if err != nil {
		return err
	}
	if msg.ChatID == 0 {
		msg.ChatID = chatID
	}

	c.mu.Lock()
	if c.store.SelectedChatID() == chatID {
		c.store.AppendMessage(*msg)
	}
	c.mu.Unlock()

	// Preview fields moved; refresh the snapshot.
	return c.RefreshChats(ctx, "")
}

// EditMessage rewrites an own message in the loaded window.
func (c *Client) EditMessage(ctx context.Context, messageID int64, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return errs.Validationf("text", "message text is empty")
	}

	c.mu.Lock()
	var target *model.Message
	c.store.MutateMessage(messageID, func(m *model.Message) {
		cp := *m
		target = &cp
	})
	own := int64(0)
	if id := c.sessions.Identity(); id != nil {
		own = id.UserID
	}
	c.mu.Unlock()

	if target == nil {
		return errs.Validationf("message", "message #%d is not in the loaded window", messageID)
	}
	if target.SenderID != own {
		return errs.Validationf("message", "only your own messages can be edited")
	}
	if target.Content == newText {
		return nil
	}

	if err := c.gateway.EditMessage(ctx, messageID, newText); err != nil {
		return err
	}
	c.mu.Lock()
	c.store.MutateMessage(messageID, func(m *model.Message) { m.Content = newText })
	c.mu.Unlock()
	c.notifier.Notice(NoticeOK, "message updated")
	return nil
}

// DeleteMessage removes an own message locally and remotely.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	if err := c.gateway.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	c.mu.Lock()
	c.store.RemoveMessage(messageID)
	c.mu.Unlock()
	c.notifier.Notice(NoticeOK, "message deleted")
	return c.RefreshChats(ctx, "")
}

// MarkRead resets the selected chat's unread counter via the backend.
func (c *Client) MarkRead(ctx context.Context) error {
	c.mu.Lock()
	chatID := c.store.SelectedChatID()
	c.mu.Unlock()
	if chatID == 0 {
		return errs.Validationf("chat", "no chat selected")
	}
	if err := c.gateway.MarkChatRead(ctx, chatID); err != nil {
		return err
	}
	c.mu.Lock()
	c.store.ZeroUnread(chatID)
	c.mu.Unlock()
	return nil
}

// CreatePrivateChat opens (or finds) the private chat with receiverID and
// selects it.
func (c *Client) CreatePrivateChat(ctx context.Context, receiverID int64) error {
	if receiverID <= 0 {
		return errs.Validationf("receiver", "no recipient chosen")
	}
	if id := c.sessions.Identity(); id != nil && id.UserID == receiverID {
		return errs.Validationf("receiver", "cannot open a chat with yourself")
	}

	chatID, err := c.gateway.CreatePrivateChat(ctx, receiverID)
	if err != nil {
		return err
	}
	if err := c.RefreshChats(ctx, ""); err != nil {
		return err
	}
	if chatID > 0 {
		if err := c.SelectChat(ctx, chatID); err != nil {
			return err
		}
	}
	c.notifier.Notice(NoticeOK, "private chat ready")
	return nil
}

type groupInput struct {
	Name      string  `validate:"required,max=100"`
	MemberIDs []int64 `validate:"required,min=1,dive,gt=0"`
}

// CreateGroup creates a group chat with the given members and selects it.
func (c *Client) CreateGroup(ctx context.Context, name, description string, memberIDs []int64) error {
	name = strings.TrimSpace(name)
	if err := c.validate.Struct(groupInput{Name: name, MemberIDs: memberIDs}); err != nil {
		return c.validationError(err)
	}

	chatID, err := c.gateway.CreateGroup(ctx, name, description, memberIDs)
	if err != nil {
		return err
	}
	if err := c.RefreshChats(ctx, ""); err != nil {
		return err
	}
	if chatID > 0 {
		if err := c.SelectChat(ctx, chatID); err != nil {
			return err
		}
	}
	c.notifier.Notice(NoticeOK, "group created")
	return nil
}

// UpdateGroup renames the selected group chat.
func (c *Client) UpdateGroup(ctx context.Context, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.Validationf("name", "group name is empty")
	}
	chat, err := c.selectedGroup()
	if err != nil {
		return err
	}
	if err := c.gateway.UpdateGroup(ctx, chat.ChatID, name, description); err != nil {
		return err
	}
	c.notifier.Notice(NoticeOK, "group updated")
	return c.RefreshChats(ctx, "")
}

// DeleteChat removes the selected chat and clears the selection.
func (c *Client) DeleteChat(ctx context.Context) error {
	c.mu.Lock()
	chatID := c.store.SelectedChatID()
	c.mu.Unlock()
	if chatID == 0 {
		return errs.Validationf("chat", "no chat selected")
	}
	if err := c.gateway.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	c.mu.Lock()
	c.store.ClearSelection()
	c.mu.Unlock()
	c.notifier.Notice(NoticeOK, "chat deleted")
	return c.RefreshChats(ctx, "")
}

// Members lists the selected group chat's members.
func (c *Client) Members(ctx context.Context) ([]model.User, error) {
	chat, err := c.selectedGroup()
	if err != nil {
		return nil, err
	}
	return c.gateway.Members(ctx, chat.ChatID)
}

// AddMember adds a user to the selected group chat.
func (c *Client) AddMember(ctx context.Context, userID int64) error {
	chat, err := c.selectedGroup()
	if err != nil {
		return err
	}
	if err := c.gateway.AddMember(ctx, chat.ChatID, userID); err != nil {
		return err
	}
	c.notifier.Notice(NoticeOK, "member added")
	return c.RefreshChats(ctx, "")
}

// RemoveMember removes a user from the selected group chat. Removing
// yourself also drops the selection: the chat is gone from your list.
func (c *Client) RemoveMember(ctx context.Context, userID int64) error {
	chat, err := c.selectedGroup()
	if err != nil {
		return err
	}
	if err := c.gateway.RemoveMember(ctx, chat.ChatID, userID); err != nil {
		return err
	}
	if id := c.sessions.Identity(); id != nil && id.UserID == userID {
		c.mu.Lock()
		c.store.ClearSelection()
		c.mu.Unlock()
	}
	c.notifier.Notice(NoticeOK, "member removed")
	return c.RefreshChats(ctx, "")
}

// Connect (re)opens the push channel for the active session.
func (c *Client) Connect() { c.channel.Connect() }

func (c *Client) selectedGroup() (*model.Chat, error) {
	c.mu.Lock()
	chat := c.store.SelectedChat()
	c.mu.Unlock()
	if chat == nil {
		return nil, errs.Validationf("chat", "no chat selected")
	}
	if !chat.IsGroup() {
		return nil, errs.Validationf("chat", "not a group chat")
	}
	return chat, nil
}

// sanitizeSearch trims and bounds a user search term before it goes to the
// backend; anything past ten characters adds nothing to a prefix search.
func sanitizeSearch(term string) string {
	term = strings.TrimSpace(term)
	if len(term) > 10 {
		term = term[:10]
	}
	return term
}
