package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatx/chatx-go/internal/config"
	"github.com/chatx/chatx-go/internal/errs"
	"github.com/chatx/chatx-go/internal/push"
	"github.com/chatx/chatx-go/internal/stubserver"
)

const eventually = 3 * time.Second
const tick = 20 * time.Millisecond

type env struct {
	stub *stubserver.Server
	srv  *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	stub := stubserver.NewServer()
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return &env{stub: stub, srv: srv}
}

func (e *env) newClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL:     e.srv.URL + "/api/v1",
		WSPath:         "/ws",
		HTTPTimeout:    5 * time.Second,
		ReconnectDelay: 20 * time.Millisecond,
		HealthInterval: time.Hour,
		UsersPageLimit: 20,
	}
	c := New(cfg, nil)
	t.Cleanup(c.Logout)
	return c
}

func (e *env) loginAs(t *testing.T, c *Client, username string) int64 {
	t.Helper()
	email := username + "@example.com"
	id := e.stub.SeedUser(username, email, "password1")
	require.NotZero(t, id)
	require.NoError(t, c.Login(context.Background(), email, "password1"))
	return id
}

func TestHealthWithoutSession(t *testing.T) {
	e := newEnv(t)
	c := e.newClient(t)

	h, err := c.FetchHealth(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Available())
	assert.Equal(t, "stub", h.Env)
	assert.NotNil(t, c.LastHealth())
}

func TestRegisterActivateLoginFlow(t *testing.T) {
	e := newEnv(t)
	c := e.newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "carol", "carol@example.com", "password1"))

	// Login before activation must fail.
	err := c.Login(ctx, "carol@example.com", "password1")
	require.Error(t, err)
	assert.True(t, errs.IsUnauthorized(err))

	token := e.stub.ActivationToken("carol@example.com")
	require.NotEmpty(t, token)
	require.NoError(t, c.Activate(ctx, token))

	require.NoError(t, c.Login(ctx, "carol@example.com", "password1"))
	id := c.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "carol", id.Username)
	assert.Equal(t, push.StateConnected, c.PushState(), "login must bring the push channel up")
}

func TestLoginValidatesInput(t *testing.T) {
	e := newEnv(t)
	c := e.newClient(t)

	err := c.Login(context.Background(), "not-an-email", "pw")
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Nil(t, c.Identity())
}

func TestPrivateChatEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	bob := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.loginAs(t, bob, "bob")

	// Alice opens a chat with Bob; the chat did not exist when Bob logged
	// in, so only the push event can tell him about it.
	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	selected := alice.SelectedChat()
	require.NotNil(t, selected)
	assert.Equal(t, "bob", selected.ChatName)

	require.NoError(t, alice.SendMessage(ctx, "hello bob"))
	msgs := alice.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Placeholder(), "the sender keeps the server echo, not a placeholder")
	assert.Equal(t, "hello bob", msgs[0].Content)

	// Bob's side: unknown-chat event forces a snapshot refresh.
	require.Eventually(t, func() bool {
		chats := bob.Chats()
		return len(chats) == 1 && chats[0].UnreadCount == 1
	}, eventually, tick, "the new chat must appear in Bob's list with one unread")

	bobChat := bob.Chats()[0]
	assert.Equal(t, "alice", bobChat.ChatName)
	assert.Equal(t, "hello bob", bobChat.LastMessage)

	// Bob opens the chat: window loads, read receipt goes out.
	require.NoError(t, bob.SelectChat(ctx, bobChat.ChatID))
	bobMsgs := bob.Messages()
	require.Len(t, bobMsgs, 1)
	assert.Equal(t, "hello bob", bobMsgs[0].Content)

	// ...and Alice sees her message flip to read.
	require.Eventually(t, func() bool {
		msgs := alice.Messages()
		return len(msgs) == 1 && msgs[0].IsRead
	}, eventually, tick, "Bob's read receipt must reach Alice")
}

func TestPushDeliversIntoSelectedWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	bob := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.loginAs(t, bob, "bob")

	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	require.NoError(t, alice.SendMessage(ctx, "ping"))

	require.Eventually(t, func() bool { return len(bob.Chats()) == 1 }, eventually, tick)
	require.NoError(t, bob.SelectChat(ctx, bob.Chats()[0].ChatID))

	require.NoError(t, alice.SendMessage(ctx, "pong"))
	require.Eventually(t, func() bool {
		msgs := bob.Messages()
		return len(msgs) == 2 && msgs[1].Content == "pong"
	}, eventually, tick, "a message for the open chat lands in the window")
	assert.True(t, bob.Messages()[1].Placeholder(), "push-delivered rows carry a local placeholder id")
	require.Eventually(t, func() bool {
		return bob.Chats()[0].UnreadCount == 0
	}, eventually, tick, "no unread bump for the open chat")
}

func TestEditAndDeletePropagate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	bob := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.loginAs(t, bob, "bob")

	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	require.NoError(t, alice.SendMessage(ctx, "draft"))

	require.Eventually(t, func() bool { return len(bob.Chats()) == 1 }, eventually, tick)
	require.NoError(t, bob.SelectChat(ctx, bob.Chats()[0].ChatID))
	require.Len(t, bob.Messages(), 1)
	serverID := bob.Messages()[0].ID

	require.NoError(t, alice.EditMessage(ctx, alice.Messages()[0].ID, "final"))
	require.Eventually(t, func() bool {
		msgs := bob.Messages()
		return len(msgs) == 1 && msgs[0].Content == "final"
	}, eventually, tick, "the edit must reach Bob's open window")
	assert.Equal(t, serverID, bob.Messages()[0].ID)

	require.NoError(t, alice.DeleteMessage(ctx, alice.Messages()[0].ID))
	require.Eventually(t, func() bool {
		return len(bob.Messages()) == 0
	}, eventually, tick, "the delete must reach Bob's open window")
}

func TestEditRejectsForeignMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	bob := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.loginAs(t, bob, "bob")

	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	require.NoError(t, alice.SendMessage(ctx, "mine"))

	require.Eventually(t, func() bool { return len(bob.Chats()) == 1 }, eventually, tick)
	require.NoError(t, bob.SelectChat(ctx, bob.Chats()[0].ChatID))
	require.Len(t, bob.Messages(), 1)

	err := bob.EditMessage(ctx, bob.Messages()[0].ID, "hijacked")
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr, "editing someone else's message is refused locally")
}

func TestSendWithoutSelectionFails(t *testing.T) {
	e := newEnv(t)
	c := e.newClient(t)
	e.loginAs(t, c, "alice")

	err := c.SendMessage(context.Background(), "into the void")
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)

	err = c.SendMessage(context.Background(), "   ")
	require.ErrorAs(t, err, &vErr)
}

func TestGroupLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.stub.SeedUser("bob", "bob@example.com", "password1")
	carolID := e.stub.SeedUser("carol", "carol@example.com", "password1")

	require.NoError(t, alice.CreateGroup(ctx, "team", "the crew", []int64{bobID}))
	selected := alice.SelectedChat()
	require.NotNil(t, selected)
	assert.True(t, selected.IsGroup())
	assert.Equal(t, "team", selected.ChatName)

	members, err := alice.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, alice.AddMember(ctx, carolID))
	members, err = alice.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	require.NoError(t, alice.RemoveMember(ctx, carolID))
	members, err = alice.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, alice.UpdateGroup(ctx, "team-2", ""))
	require.Eventually(t, func() bool {
		c := alice.SelectedChat()
		return c != nil && c.ChatName == "team-2"
	}, eventually, tick)

	require.NoError(t, alice.DeleteChat(ctx))
	assert.Nil(t, alice.SelectedChat())
	assert.Empty(t, alice.Chats())
}

func TestGroupOpsRequireGroupSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.stub.SeedUser("bob", "bob@example.com", "password1")

	var vErr *errs.ValidationError
	_, err := alice.Members(ctx)
	require.ErrorAs(t, err, &vErr, "no selection")

	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	_, err = alice.Members(ctx)
	require.ErrorAs(t, err, &vErr, "private chats have no member management")
}

func TestLogoutDropsEverything(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.stub.SeedUser("bob", "bob@example.com", "password1")
	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))

	alice.Logout()

	assert.Nil(t, alice.Identity())
	assert.Empty(t, alice.Chats())
	assert.Nil(t, alice.SelectedChat())
	assert.Equal(t, push.StateDisconnected, alice.PushState())

	err := alice.SendMessage(ctx, "too late")
	require.ErrorIs(t, err, errs.ErrAuthRequired)
}

func TestSelfRemovalClearsSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	aliceID := e.loginAs(t, alice, "alice")

	require.NoError(t, alice.CreateGroup(ctx, "team", "", []int64{e.stub.SeedUser("carol", "carol@example.com", "password1")}))

	// Alice leaves her own group.
	require.NoError(t, alice.RemoveMember(ctx, aliceID))
	assert.Nil(t, alice.SelectedChat(), "leaving the selected group drops the selection")
}

func TestRefreshUsersTrimsSearchTerm(t *testing.T) {
	e := newEnv(t)
	c := e.newClient(t)
	e.loginAs(t, c, "alice")
	e.stub.SeedUser("bobby", "bobby@example.com", "password1")

	require.NoError(t, c.RefreshUsers(context.Background(), "  bobby-with-a-very-long-tail  ")) // sanitized to 10 chars
	users := c.Users()
	// "bobby-with" matches nothing; the call itself must still succeed.
	for _, u := range users {
		assert.NotEqual(t, "bobby", u.Username)
	}

	require.NoError(t, c.RefreshUsers(context.Background(), "bobby"))
	found := false
	for _, u := range c.Users() {
		if u.Username == "bobby" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSnapshotRefreshClearsVanishedSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.stub.SeedUser("bob", "bob@example.com", "password1")
	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	require.NotNil(t, alice.SelectedChat())
	chatID := alice.SelectedChat().ChatID

	// The chat disappears server-side (the peer deleted it).
	removeChatDirectly(t, e, chatID)

	require.NoError(t, alice.RefreshChats(ctx, ""))
	assert.Nil(t, alice.SelectedChat())
	assert.Empty(t, alice.Messages())
}

// removeChatDirectly deletes a chat as its other participant would.
func removeChatDirectly(t *testing.T, e *env, chatID int64) {
	t.Helper()
	bob := e.newClient(t)
	require.NoError(t, bob.Login(context.Background(), "bob@example.com", "password1"))
	require.NoError(t, bob.RefreshChats(context.Background(), ""))
	require.NoError(t, bob.SelectChat(context.Background(), chatID))
	require.NoError(t, bob.DeleteChat(context.Background()))
}

func TestLocalStateIsolatedPerClient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.newClient(t)
	bob := e.newClient(t)
	e.loginAs(t, alice, "alice")
	bobID := e.loginAs(t, bob, "bob")

	require.NoError(t, alice.CreatePrivateChat(ctx, bobID))
	require.NotNil(t, alice.SelectedChat())
	assert.Nil(t, bob.SelectedChat(), "selection is local state, never shared")
}
