package model

import "strings"

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Chat is one row of the chat list snapshot. Timestamps stay in the backend's
// wire form; the client never does arithmetic on them.
type Chat struct {
	ChatID        int64    `json:"chat_id"`
	ChatType      ChatType `json:"chat_type"`
	ChatName      string   `json:"chat_name"`
	UserRole      string   `json:"user_role"`
	JoinedAt      string   `json:"joined_at"`
	LastMessage   string   `json:"last_message"`
	LastMessageAt string   `json:"last_message_at"`
	UnreadCount   int      `json:"unread_count"`
}

// IsGroup reports whether group-only operations (members, rename) apply.
func (c *Chat) IsGroup() bool { return c.ChatType == ChatTypeGroup }

// UnmarshalJSON decodes a chat row tolerating the backend's field spelling
// variants, see decode.go for the fallback order.
func (c *Chat) UnmarshalJSON(data []byte) error {
	f, err := newFields(data)
	if err != nil {
		return err
	}
	c.ChatID = f.int64Of("chat_id")
	c.ChatType = ChatType(strings.ToLower(f.stringOr("chat_type", string(ChatTypePrivate))))
	c.ChatName = f.stringOr("chat_name", "No name")
	c.UserRole = f.stringOf("user_role")
	c.JoinedAt = f.stringOf("joined_at")
	c.LastMessage = f.stringOf("last_message")
	c.LastMessageAt = f.stringOf("last_message_at")
	c.UnreadCount = int(f.int64Of("unread_count"))
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	return nil
}
