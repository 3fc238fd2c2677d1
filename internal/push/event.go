package push

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventMessageUpdated EventType = "message_updated"
	EventMessageDeleted EventType = "message_deleted"
	EventMessagesRead   EventType = "messages_read"
)

// Event is the closed set of server-originated push events. The four concrete
// types below are the only implementations; unknown discriminators are
// rejected at decode time, never silently ignored.
type Event interface {
	Type() EventType
}

// NewMessage announces a message created in one of the caller's chats.
type NewMessage struct {
	ChatID     int64  `json:"chat_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

func (NewMessage) Type() EventType { return EventNewMessage }

// MessageUpdated announces an edit of an existing message.
type MessageUpdated struct {
	ChatID      int64  `json:"chat_id"`
	MessageID   int64  `json:"message_id"`
	MessageText string `json:"message_text"`
}

func (MessageUpdated) Type() EventType { return EventMessageUpdated }

// MessageDeleted announces removal of an existing message.
type MessageDeleted struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

func (MessageDeleted) Type() EventType { return EventMessageDeleted }

// MessagesRead announces that readerID marked the chat read.
type MessagesRead struct {
	ChatID   int64 `json:"chat_id"`
	ReaderID int64 `json:"reader_id"`
}

func (MessagesRead) Type() EventType { return EventMessagesRead }

// DecodeEvent parses one inbound frame. A frame that fails to parse or
// carries an unknown type yields an error; it must not close the channel.
func DecodeEvent(raw []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	switch head.Type {
	case EventNewMessage:
		var ev NewMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("parse %s: %w", head.Type, err)
		}
		return ev, nil
	case EventMessageUpdated:
		var ev MessageUpdated
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("parse %s: %w", head.Type, err)
		}
		return ev, nil
	case EventMessageDeleted:
		var ev MessageDeleted
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("parse %s: %w", head.Type, err)
		}
		return ev, nil
	case EventMessagesRead:
		var ev MessagesRead
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("parse %s: %w", head.Type, err)
		}
		return ev, nil
	case "":
		return nil, fmt.Errorf("frame without type discriminator")
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
}
