// Package reconcile merges inbound push events into the local state store.
// Application must stay correct under duplicate and out-of-order delivery:
// update, delete and read events are idempotent; a repeated new_message may
// duplicate (no server id travels with the event, see the placeholder scheme
// in model.Message).
package reconcile

import (
	"fmt"
	"time"

	"github.com/chatx/chatx-go/internal/model"
	"github.com/chatx/chatx-go/internal/push"
	"github.com/chatx/chatx-go/internal/state"
)

// Effect describes the follow-ups an applied event asks for. The engine never
// performs network calls or user-visible output itself; the caller executes
// the effect after the store mutation has completed.
type Effect struct {
	// MarkRead asks for a best-effort, silent read-receipt call for the chat.
	MarkRead int64
	// RefreshChats asks for a full chat list refresh (event referenced an
	// unknown chat, e.g. one created concurrently elsewhere).
	RefreshChats bool
	// Notice is a short transient message for the user, empty for none.
	Notice string
}

// Engine applies push events to the store. ownUserID supplies the local
// session's id (0 when logged out) at application time, not construction
// time, since the session may change between events.
type Engine struct {
	store     *state.Store
	ownUserID func() int64
}

func NewEngine(store *state.Store, ownUserID func() int64) *Engine {
	return &Engine{store: store, ownUserID: ownUserID}
}

// Apply merges one event and returns the requested follow-ups.
func (e *Engine) Apply(ev push.Event) Effect {
	switch ev := ev.(type) {
	case push.NewMessage:
		return e.applyNewMessage(ev)
	case push.MessageUpdated:
		return e.applyMessageUpdated(ev)
	case push.MessageDeleted:
		return e.applyMessageDeleted(ev)
	case push.MessagesRead:
		return e.applyMessagesRead(ev)
	default:
		// DecodeEvent rejects unknown discriminators; reaching this arm
		// means a new Event type was added without an engine rule.
		return Effect{Notice: fmt.Sprintf("unhandled push event %q", ev.Type())}
	}
}

func (e *Engine) applyNewMessage(ev push.NewMessage) Effect {
	senderName := ev.SenderName
	if senderName == "" {
		senderName = fmt.Sprintf("User #%d", ev.SenderID)
	}
	createdAt := ev.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	if ev.ChatID == e.store.SelectedChatID() {
		e.store.AppendMessage(model.Message{
			ID:         e.store.NextPlaceholderID(),
			ChatID:     ev.ChatID,
			SenderID:   ev.SenderID,
			SenderName: senderName,
			Content:    ev.Content,
			CreatedAt:  createdAt,
			IsRead:     false,
		})
		// The selected chat is on screen: no unread bump, just a silent
		// read receipt.
		return Effect{MarkRead: ev.ChatID}
	}

	notice := senderName + ": " + clip(ev.Content, 48)
	if e.store.BumpUnread(ev.ChatID, ev.Content, createdAt) {
		return Effect{Notice: notice}
	}
	// Unknown chat, created elsewhere while we were looking away. A full
	// snapshot refresh recovers it; no local mutation.
	return Effect{RefreshChats: true, Notice: notice}
}

func (e *Engine) applyMessageUpdated(ev push.MessageUpdated) Effect {
	if ev.ChatID != e.store.SelectedChatID() {
		return Effect{}
	}
	applied := e.store.MutateMessage(ev.MessageID, func(m *model.Message) {
		if ev.MessageText != "" {
			m.Content = ev.MessageText
		}
	})
	if !applied {
		return Effect{}
	}
	return Effect{Notice: "message edited"}
}

func (e *Engine) applyMessageDeleted(ev push.MessageDeleted) Effect {
	if ev.ChatID != e.store.SelectedChatID() {
		return Effect{}
	}
	if !e.store.RemoveMessage(ev.MessageID) {
		return Effect{}
	}
	return Effect{Notice: "message deleted"}
}

func (e *Engine) applyMessagesRead(ev push.MessagesRead) Effect {
	if ev.ChatID != e.store.SelectedChatID() {
		return Effect{}
	}
	own := e.ownUserID()
	if own == 0 || ev.ReaderID == own {
		// Our own read receipt echoed back; nothing to flip.
		return Effect{}
	}
	changed := e.store.MutateMessages(func(m *model.Message) bool {
		if m.SenderID == own && !m.IsRead {
			m.IsRead = true
			return true
		}
		return false
	})
	if changed == 0 {
		return Effect{}
	}
	return Effect{Notice: fmt.Sprintf("User #%d read your messages", ev.ReaderID)}
}

func clip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
