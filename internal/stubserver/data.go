package stubserver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory backing data. This is development/test infrastructure: no
// hashing, no persistence, just the shapes the real backend serves.

type user struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	Activated bool
}

type member struct {
	UserID   int64
	Role     string
	JoinedAt time.Time
}

type chat struct {
	ID          int64
	Type        string // "private" | "group"
	Name        string
	Description string
	Members     []member
	CreatedAt   time.Time
}

type message struct {
	ID        int64
	ChatID    int64
	SenderID  int64
	Text      string
	IsRead    bool
	CreatedAt time.Time
}

type data struct {
	mu          sync.Mutex
	users       map[int64]*user
	chats       map[int64]*chat
	messages    map[int64]*message
	activations map[string]int64 // token -> user id
	nextUser    int64
	nextChat    int64
	nextMessage int64
}

func newData() *data {
	return &data{
		users:       make(map[int64]*user),
		chats:       make(map[int64]*chat),
		messages:    make(map[int64]*message),
		activations: make(map[string]int64),
	}
}

func (d *data) createUser(username, email, password string) (int64, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email || u.Username == username {
			return 0, "", false
		}
	}
	d.nextUser++
	u := &user{ID: d.nextUser, Username: username, Email: email, Password: password}
	d.users[u.ID] = u
	token := uuid.NewString()
	d.activations[token] = u.ID
	return u.ID, token, true
}

func (d *data) activate(token string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.activations[token]
	if !ok {
		return false
	}
	delete(d.activations, token)
	if u, ok := d.users[id]; ok {
		u.Activated = true
		return true
	}
	return false
}

func (d *data) authenticate(email, password string) *user {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email && u.Password == password && u.Activated {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (d *data) userByID(id int64) *user {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (d *data) searchUsers(search string, limit, offset int) []*user {
	d.mu.Lock()
	defer d.mu.Unlock()
	search = strings.ToLower(search)
	var out []*user
	for _, u := range d.users {
		if !u.Activated {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (d *data) findPrivateChat(a, b int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.chats {
		if c.Type != "private" || len(c.Members) != 2 {
			continue
		}
		ids := []int64{c.Members[0].UserID, c.Members[1].UserID}
		if (ids[0] == a && ids[1] == b) || (ids[0] == b && ids[1] == a) {
			return c.ID
		}
	}
	return 0
}

func (d *data) createChat(chatType, name, description string, creator int64, memberIDs []int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextChat++
	c := &chat{
		ID:          d.nextChat,
		Type:        chatType,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	c.Members = append(c.Members, member{UserID: creator, Role: "admin", JoinedAt: c.CreatedAt})
	for _, id := range memberIDs {
		if id != creator {
			c.Members = append(c.Members, member{UserID: id, Role: "member", JoinedAt: c.CreatedAt})
		}
	}
	d.chats[c.ID] = c
	return c.ID
}

func (d *data) chatByID(id int64) *chat {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.chats[id]; ok {
		cp := *c
		cp.Members = append([]member(nil), c.Members...)
		return &cp
	}
	return nil
}

func (d *data) isMember(chatID, userID int64) bool {
	c := d.chatByID(chatID)
	if c == nil {
		return false
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (d *data) memberIDs(chatID int64) []int64 {
	c := d.chatByID(chatID)
	if c == nil {
		return nil
	}
	out := make([]int64, 0, len(c.Members))
	for _, m := range c.Members {
		out = append(out, m.UserID)
	}
	return out
}

func (d *data) addMember(chatID, userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chats[chatID]
	if !ok {
		return false
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return false
		}
	}
	c.Members = append(c.Members, member{UserID: userID, Role: "member", JoinedAt: time.Now()})
	return true
}

func (d *data) removeMember(chatID, userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chats[chatID]
	if !ok {
		return false
	}
	for i, m := range c.Members {
		if m.UserID == userID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}

func (d *data) updateGroup(chatID int64, name, description string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chats[chatID]
	if !ok || c.Type != "group" {
		return false
	}
	c.Name = name
	c.Description = description
	return true
}

func (d *data) deleteChat(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.chats[chatID]; !ok {
		return false
	}
	delete(d.chats, chatID)
	for id, m := range d.messages {
		if m.ChatID == chatID {
			delete(d.messages, id)
		}
	}
	return true
}

func (d *data) userChats(userID int64, search string) []*chat {
	d.mu.Lock()
	defer d.mu.Unlock()
	search = strings.ToLower(search)
	var out []*chat
	for _, c := range d.chats {
		joined := false
		for _, m := range c.Members {
			if m.UserID == userID {
				joined = true
				break
			}
		}
		if !joined {
			continue
		}
		cp := *c
		cp.Members = append([]member(nil), c.Members...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if search == "" {
		return out
	}
	var filtered []*chat
	for _, c := range out {
		if strings.Contains(strings.ToLower(d.displayNameLocked(c, userID)), search) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// displayNameLocked resolves a chat's name for one viewer: groups keep their
// name, private chats show the peer's username. Caller holds d.mu.
func (d *data) displayNameLocked(c *chat, viewer int64) string {
	if c.Type == "group" {
		return c.Name
	}
	for _, m := range c.Members {
		if m.UserID != viewer {
			if u, ok := d.users[m.UserID]; ok {
				return u.Username
			}
		}
	}
	return "No name"
}

func (d *data) createMessage(chatID, senderID int64, text string) *message {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextMessage++
	m := &message{
		ID:        d.nextMessage,
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	d.messages[m.ID] = m
	cp := *m
	return &cp
}

func (d *data) messageByID(id int64) *message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.messages[id]; ok {
		cp := *m
		return &cp
	}
	return nil
}

func (d *data) updateMessage(id int64, text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.messages[id]; ok {
		m.Text = text
		return true
	}
	return false
}

func (d *data) deleteMessage(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.messages[id]; !ok {
		return false
	}
	delete(d.messages, id)
	return true
}

func (d *data) chatMessages(chatID int64) []*message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*message
	for _, m := range d.messages {
		if m.ChatID == chatID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// markRead flips messages authored by others to read and reports whether
// anything changed.
func (d *data) markRead(chatID, readerID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := false
	for _, m := range d.messages {
		if m.ChatID == chatID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			changed = true
		}
	}
	return changed
}

// unreadCount counts messages in the chat authored by others and not read.
func (d *data) unreadCount(chatID, viewer int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, m := range d.messages {
		if m.ChatID == chatID && m.SenderID != viewer && !m.IsRead {
			n++
		}
	}
	return n
}

// lastMessage returns the newest message of a chat, nil when empty.
func (d *data) lastMessage(chatID int64) *message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var last *message
	for _, m := range d.messages {
		if m.ChatID != chatID {
			continue
		}
		if last == nil || m.ID > last.ID {
			last = m
		}
	}
	if last == nil {
		return nil
	}
	cp := *last
	return &cp
}
