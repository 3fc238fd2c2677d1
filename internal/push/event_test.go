package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Event
	}{
		{
			"new_message",
			`{"type":"new_message","chat_id":1,"sender_id":2,"sender_name":"bob","content":"hi","created_at":"2026-01-01T00:00:00Z"}`,
			NewMessage{ChatID: 1, SenderID: 2, SenderName: "bob", Content: "hi", CreatedAt: "2026-01-01T00:00:00Z"},
		},
		{
			"message_updated",
			`{"type":"message_updated","chat_id":1,"message_id":5,"message_text":"edited"}`,
			MessageUpdated{ChatID: 1, MessageID: 5, MessageText: "edited"},
		},
		{
			"message_deleted",
			`{"type":"message_deleted","chat_id":1,"message_id":5}`,
			MessageDeleted{ChatID: 1, MessageID: 5},
		},
		{
			"messages_read",
			`{"type":"messages_read","chat_id":1,"reader_id":3}`,
			MessagesRead{ChatID: 1, ReaderID: 3},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}

func TestDecodeEventRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing discriminator", `{"chat_id":1}`},
		{"unknown discriminator", `{"type":"user_typing","chat_id":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.raw))
			require.Error(t, err)
			assert.Nil(t, ev)
		})
	}
}
