// Package state is the canonical in-memory view of chats, messages, users
// and the current selection. It is not safe for concurrent use; the owning
// client serializes all access, so every mutation is observably atomic.
package state

import (
	"github.com/chatx/chatx-go/internal/model"
)

// Store enforces the data-model invariants: at most one selected chat, a
// selection always referencing a chat present in the store, and non-negative
// unread counters. Message ids are unique within the loaded window only.
type Store struct {
	chats    []model.Chat
	users    []model.User
	selected int64 // 0 = no selection
	window   []model.Message

	placeholderSeq int64 // counts down; placeholder ids are negative
}

func NewStore() *Store { return &Store{} }

// ReplaceChats installs a fresh chat list snapshot. Rows without a positive
// id are dropped. If the selected chat vanished from the snapshot, the
// selection and the message window are cleared. Reports whether the
// selection survived.
func (s *Store) ReplaceChats(chats []model.Chat) bool {
	kept := make([]model.Chat, 0, len(chats))
	for _, c := range chats {
		if c.ChatID > 0 {
			kept = append(kept, c)
		}
	}
	s.chats = kept

	if s.selected == 0 {
		return true
	}
	if s.findChat(s.selected) == nil {
		s.ClearSelection()
		return false
	}
	return true
}

// ReplaceUsers installs a fresh user list snapshot.
func (s *Store) ReplaceUsers(users []model.User) {
	kept := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.ID > 0 {
			kept = append(kept, u)
		}
	}
	s.users = kept
}

// SelectChat makes chatID the selected chat and empties the message window
// so the caller can load a fresh one. Fails when the chat is not in the
// store, keeping the selection invariant.
func (s *Store) SelectChat(chatID int64) bool {
	if s.findChat(chatID) == nil {
		return false
	}
	s.selected = chatID
	s.window = nil
	return true
}

// ClearSelection drops the selection and the loaded window.
func (s *Store) ClearSelection() {
	s.selected = 0
	s.window = nil
}

// SetWindow installs the loaded message window for the selected chat.
// Ignored without a selection.
func (s *Store) SetWindow(messages []model.Message) {
	if s.selected == 0 {
		return
	}
	s.window = append([]model.Message(nil), messages...)
}

// AppendMessage appends to the loaded window in arrival order (the window is
// append-ordered, not timestamp-sorted). Ignored without a selection.
func (s *Store) AppendMessage(msg model.Message) {
	if s.selected == 0 {
		return
	}
	s.window = append(s.window, msg)
}

// MutateMessage applies fn to the window message with the given id.
func (s *Store) MutateMessage(id int64, fn func(*model.Message)) bool {
	for i := range s.window {
		if s.window[i].ID == id {
			fn(&s.window[i])
			return true
		}
	}
	return false
}

// MutateMessages applies fn to every window message; fn reports whether it
// changed the message. Returns the number of changed messages.
func (s *Store) MutateMessages(fn func(*model.Message) bool) int {
	changed := 0
	for i := range s.window {
		if fn(&s.window[i]) {
			changed++
		}
	}
	return changed
}

// RemoveMessage deletes the window message with the given id.
func (s *Store) RemoveMessage(id int64) bool {
	for i := range s.window {
		if s.window[i].ID == id {
			s.window = append(s.window[:i], s.window[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) findChat(chatID int64) *model.Chat {
	for i := range s.chats {
		if s.chats[i].ChatID == chatID {
			return &s.chats[i]
		}
	}
	return nil
}

// FindChat returns a copy of the chat with the given id, or nil.
func (s *Store) FindChat(chatID int64) *model.Chat {
	if c := s.findChat(chatID); c != nil {
		cp := *c
		return &cp
	}
	return nil
}

// FindUser returns a copy of the user with the given id, or nil.
func (s *Store) FindUser(id int64) *model.User {
	for i := range s.users {
		if s.users[i].ID == id {
			cp := s.users[i]
			return &cp
		}
	}
	return nil
}

// BumpUnread increments the chat's unread counter and overwrites its preview
// fields. Reports whether the chat is known.
func (s *Store) BumpUnread(chatID int64, lastMessage, lastMessageAt string) bool {
	c := s.findChat(chatID)
	if c == nil {
		return false
	}
	c.UnreadCount++
	c.LastMessage = lastMessage
	c.LastMessageAt = lastMessageAt
	return true
}

// ZeroUnread resets the chat's unread counter after a mark-read.
func (s *Store) ZeroUnread(chatID int64) {
	if c := s.findChat(chatID); c != nil {
		c.UnreadCount = 0
	}
}

// SelectedChatID returns the selected chat id, 0 when none.
func (s *Store) SelectedChatID() int64 { return s.selected }

// SelectedChat returns a copy of the selected chat, or nil.
func (s *Store) SelectedChat() *model.Chat {
	if s.selected == 0 {
		return nil
	}
	return s.FindChat(s.selected)
}

// Chats returns a copy of the chat list.
func (s *Store) Chats() []model.Chat {
	return append([]model.Chat(nil), s.chats...)
}

// Users returns a copy of the user list.
func (s *Store) Users() []model.User {
	return append([]model.User(nil), s.users...)
}

// Messages returns a copy of the loaded window.
func (s *Store) Messages() []model.Message {
	return append([]model.Message(nil), s.window...)
}

// NextPlaceholderID returns a fresh client-synthesized message id. Ids are
// negative so they can never collide with server-assigned ones.
func (s *Store) NextPlaceholderID() int64 {
	s.placeholderSeq--
	return s.placeholderSeq
}

// Reset drops everything; used on logout.
func (s *Store) Reset() {
	s.chats = nil
	s.users = nil
	s.window = nil
	s.selected = 0
}
