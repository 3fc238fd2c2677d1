package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatDecodeSpellingVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"snake_case", `{"chat_id":3,"chat_type":"group","chat_name":"team","unread_count":2}`},
		{"camelCase", `{"chatId":3,"chatType":"group","chatName":"team","unreadCount":2}`},
		{"PascalCase", `{"ChatId":3,"ChatType":"group","ChatName":"team","UnreadCount":2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var c Chat
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &c))
			assert.Equal(t, int64(3), c.ChatID)
			assert.Equal(t, ChatTypeGroup, c.ChatType)
			assert.Equal(t, "team", c.ChatName)
			assert.Equal(t, 2, c.UnreadCount)
		})
	}
}

func TestChatDecodeDefaults(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"chat_id":1}`), &c))
	assert.Equal(t, ChatTypePrivate, c.ChatType, "missing type reads as private")
	assert.Equal(t, "No name", c.ChatName)
	assert.Zero(t, c.UnreadCount)
}

func TestChatDecodeNormalizesType(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"chat_id":1,"chat_type":"GROUP"}`), &c))
	assert.Equal(t, ChatTypeGroup, c.ChatType)
	assert.True(t, c.IsGroup())
}

func TestChatDecodeClampsNegativeUnread(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"chat_id":1,"unread_count":-4}`), &c))
	assert.Zero(t, c.UnreadCount)
}

func TestChatDecodeNumericString(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"chat_id":"12","unread_count":"3"}`), &c))
	assert.Equal(t, int64(12), c.ChatID)
	assert.Equal(t, 3, c.UnreadCount)
}

func TestMessageDecodeContentFallback(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":5,"chat_id":2,"message_text":"hi"}`), &m))
	assert.Equal(t, "hi", m.Content, "message_text serves when content is absent")

	var m2 Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":5,"content":"yo","message_text":"ignored"}`), &m2))
	assert.Equal(t, "yo", m2.Content, "content wins over message_text")
}

func TestMessagePlaceholder(t *testing.T) {
	assert.True(t, (&Message{ID: -1}).Placeholder())
	assert.False(t, (&Message{ID: 1}).Placeholder())
	assert.False(t, (&Message{}).Placeholder())
}

func TestUserDecodeUsernameFallbacks(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"user_name":"dana"}`), &u))
	assert.Equal(t, "dana", u.Username)

	var anon User
	require.NoError(t, json.Unmarshal([]byte(`{"id":4}`), &anon))
	assert.Equal(t, "User #4", anon.Username)
}

func TestHealthAvailable(t *testing.T) {
	var h Health
	require.NoError(t, json.Unmarshal([]byte(`{"status":"available","version":"1.0.0","ENV":"production"}`), &h))
	assert.True(t, h.Available())
	assert.Equal(t, "production", h.Env)

	down := &Health{Status: "degraded"}
	assert.False(t, down.Available())
	assert.False(t, (*Health)(nil).Available())
}
