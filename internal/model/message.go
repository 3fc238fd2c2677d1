package model

// Message is one entry of the loaded message window. IDs are unique within
// the window only; negative ids are local placeholders for push-originated
// messages the server has not echoed yet.
type Message struct {
	ID         int64  `json:"id"`
	ChatID     int64  `json:"chat_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	IsRead     bool   `json:"is_read"`
}

// Placeholder reports whether the id is client-synthesized and awaits a
// server-assigned one.
func (m *Message) Placeholder() bool { return m.ID < 0 }

// UnmarshalJSON decodes a message tolerating the backend's field spelling
// variants. Content falls back to message_text, the name some endpoints use.
func (m *Message) UnmarshalJSON(data []byte) error {
	f, err := newFields(data)
	if err != nil {
		return err
	}
	m.ID = f.int64Of("id")
	m.ChatID = f.int64Of("chat_id")
	m.SenderID = f.int64Of("sender_id")
	m.SenderName = f.stringOf("sender_name")
	m.Content = f.stringOf("content")
	if m.Content == "" {
		m.Content = f.stringOf("message_text")
	}
	m.CreatedAt = f.stringOf("created_at")
	m.IsRead = f.boolOf("is_read")
	return nil
}
