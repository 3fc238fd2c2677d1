package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatx/chatx-go/internal/model"
)

func twoChats() []model.Chat {
	return []model.Chat{
		{ChatID: 1, ChatType: model.ChatTypePrivate, ChatName: "alice"},
		{ChatID: 2, ChatType: model.ChatTypeGroup, ChatName: "team", UnreadCount: 1},
	}
}

func TestReplaceChatsKeepsSurvivingSelection(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	require.True(t, s.SelectChat(2))
	s.SetWindow([]model.Message{{ID: 10, ChatID: 2}})

	survived := s.ReplaceChats(twoChats())
	assert.True(t, survived)
	assert.Equal(t, int64(2), s.SelectedChatID())
	assert.Len(t, s.Messages(), 1, "window survives when the selected chat does")
}

func TestReplaceChatsClearsVanishedSelection(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	require.True(t, s.SelectChat(2))
	s.SetWindow([]model.Message{{ID: 10, ChatID: 2}})

	survived := s.ReplaceChats([]model.Chat{{ChatID: 1}})
	assert.False(t, survived)
	assert.Zero(t, s.SelectedChatID())
	assert.Empty(t, s.Messages(), "window must go with the selection")
}

func TestReplaceChatsDropsNonPositiveIDs(t *testing.T) {
	s := NewStore()
	s.ReplaceChats([]model.Chat{{ChatID: 0}, {ChatID: -2}, {ChatID: 3}})
	chats := s.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, int64(3), chats[0].ChatID)
}

func TestSelectChatUnknownFails(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	assert.False(t, s.SelectChat(99))
	assert.Zero(t, s.SelectedChatID())
}

func TestSelectChatClearsPreviousWindow(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	require.True(t, s.SelectChat(1))
	s.SetWindow([]model.Message{{ID: 10, ChatID: 1}})

	require.True(t, s.SelectChat(2))
	assert.Empty(t, s.Messages(), "switching chats must not show the old window")
}

func TestAppendAndMutateMessages(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	require.True(t, s.SelectChat(1))
	s.SetWindow([]model.Message{{ID: 10, ChatID: 1, Content: "old"}})
	s.AppendMessage(model.Message{ID: 11, ChatID: 1, Content: "new"})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(11), msgs[1].ID, "append keeps arrival order")

	assert.True(t, s.MutateMessage(10, func(m *model.Message) { m.Content = "edited" }))
	assert.False(t, s.MutateMessage(99, func(m *model.Message) {}))
	assert.Equal(t, "edited", s.Messages()[0].Content)

	changed := s.MutateMessages(func(m *model.Message) bool {
		if m.IsRead {
			return false
		}
		m.IsRead = true
		return true
	})
	assert.Equal(t, 2, changed)

	assert.True(t, s.RemoveMessage(10))
	assert.False(t, s.RemoveMessage(10))
	assert.Len(t, s.Messages(), 1)
}

func TestBumpUnread(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())

	require.True(t, s.BumpUnread(2, "ping", "2026-01-02T03:04:05Z"))
	require.True(t, s.BumpUnread(2, "pong", "2026-01-02T03:05:00Z"))

	c := s.FindChat(2)
	require.NotNil(t, c)
	assert.Equal(t, 3, c.UnreadCount)
	assert.Equal(t, "pong", c.LastMessage, "preview shows the latest message")
	assert.Equal(t, "2026-01-02T03:05:00Z", c.LastMessageAt)

	assert.False(t, s.BumpUnread(99, "x", ""), "unknown chat cannot be bumped")

	s.ZeroUnread(2)
	assert.Zero(t, s.FindChat(2).UnreadCount)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())

	chats := s.Chats()
	chats[0].ChatName = "mutated"
	assert.Equal(t, "alice", s.FindChat(1).ChatName)

	found := s.FindChat(1)
	found.UnreadCount = 42
	assert.Zero(t, s.FindChat(1).UnreadCount)
}

func TestNextPlaceholderIDMonotonic(t *testing.T) {
	s := NewStore()
	a := s.NextPlaceholderID()
	b := s.NextPlaceholderID()
	assert.Negative(t, a)
	assert.Negative(t, b)
	assert.Less(t, b, a, "placeholder ids never repeat")
}

func TestReset(t *testing.T) {
	s := NewStore()
	s.ReplaceChats(twoChats())
	s.ReplaceUsers([]model.User{{ID: 1, Username: "alice"}})
	require.True(t, s.SelectChat(1))
	s.SetWindow([]model.Message{{ID: 10, ChatID: 1}})

	s.Reset()
	assert.Empty(t, s.Chats())
	assert.Empty(t, s.Users())
	assert.Empty(t, s.Messages())
	assert.Zero(t, s.SelectedChatID())
}
