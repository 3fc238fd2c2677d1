package stubserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatx/chatx-go/internal/push"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Health is the one route served without the data envelope.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "available",
		"version": s.version,
		"ENV":     "stub",
		"message": "in-memory backend",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if in.Username == "" || in.Email == "" || len(in.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "username, email and a password of 8+ characters are required")
		return
	}
	if _, _, ok := s.data.createUser(in.Username, in.Email, in.Password); !ok {
		writeError(w, http.StatusConflict, "a user with this email or username already exists")
		return
	}
	writeData(w, http.StatusCreated, map[string]string{
		"message": "account created, check your email for the activation link",
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if !s.data.activate(chi.URLParam(r, "token")) {
		writeError(w, http.StatusNotFound, "invalid or expired activation token")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "account activated"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readBody(w, r, &in) {
		return
	}
	u := s.data.authenticate(in.Email, in.Password)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeData(w, http.StatusCreated, s.signToken(u))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = 20
	}
	rows := []userRow{}
	for _, u := range s.data.searchUsers(q.Get("search"), limit, offset) {
		rows = append(rows, userRow{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	writeData(w, http.StatusOK, rows)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	rows := []chatRow{}
	for _, c := range s.data.userChats(caller, r.URL.Query().Get("search")) {
		rows = append(rows, s.chatToRow(c, caller))
	}
	writeData(w, http.StatusOK, rows)
}

func (s *Server) chatToRow(c *chat, viewer int64) chatRow {
	row := chatRow{
		ChatID:   c.ID,
		ChatType: c.Type,
	}
	for _, m := range c.Members {
		if m.UserID == viewer {
			row.UserRole = m.Role
			row.JoinedAt = m.JoinedAt.UTC().Format(time.RFC3339)
		}
	}
	s.data.mu.Lock()
	row.ChatName = s.data.displayNameLocked(c, viewer)
	s.data.mu.Unlock()
	if last := s.data.lastMessage(c.ID); last != nil {
		row.LastMessage = last.Text
		row.LastMessageAt = last.CreatedAt.UTC().Format(time.RFC3339)
	}
	row.UnreadCount = s.data.unreadCount(c.ID, viewer)
	return row
}

func (s *Server) handleCreatePrivate(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	var in struct {
		ReceiverID int64 `json:"receiver_id"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if in.ReceiverID == caller {
		writeError(w, http.StatusUnprocessableEntity, "cannot open a chat with yourself")
		return
	}
	if s.data.userByID(in.ReceiverID) == nil {
		writeError(w, http.StatusNotFound, "receiver not found")
		return
	}
	if id := s.data.findPrivateChat(caller, in.ReceiverID); id != 0 {
		writeData(w, http.StatusOK, map[string]int64{"chat_id": id})
		return
	}
	id := s.data.createChat("private", "", "", caller, []int64{in.ReceiverID})
	writeData(w, http.StatusCreated, map[string]int64{"chat_id": id})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	if !s.data.isMember(chatID, caller) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	s.data.deleteChat(chatID)
	writeData(w, http.StatusOK, map[string]string{"message": "chat deleted"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	if !s.data.isMember(chatID, caller) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	rows := []messageRow{}
	for _, m := range s.data.chatMessages(chatID) {
		rows = append(rows, s.messageToRow(m))
	}
	writeData(w, http.StatusOK, rows)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	var in struct {
		ChatID      int64  `json:"chat_id"`
		MessageText string `json:"message_text"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.MessageText) == "" {
		writeError(w, http.StatusUnprocessableEntity, "message text must not be empty")
		return
	}
	if !s.data.isMember(in.ChatID, caller) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	m := s.data.createMessage(in.ChatID, caller, in.MessageText)
	row := s.messageToRow(m)
	writeData(w, http.StatusCreated, row)
	s.hub.send(s.data.memberIDs(in.ChatID), caller, newMessageFrame{
		Type:       push.EventNewMessage,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderName: row.SenderName,
		Content:    m.Text,
		CreatedAt:  row.CreatedAt,
	})
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	messageID := pathID(r, "messageID")
	var in struct {
		MessageText string `json:"message_text"`
	}
	if !readBody(w, r, &in) {
		return
	}
	m := s.data.messageByID(messageID)
	if m == nil || m.SenderID != caller {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if strings.TrimSpace(in.MessageText) == "" {
		writeError(w, http.StatusUnprocessableEntity, "message text must not be empty")
		return
	}
	s.data.updateMessage(messageID, in.MessageText)
	writeData(w, http.StatusOK, map[string]string{"message": "message updated"})
	s.hub.send(s.data.memberIDs(m.ChatID), caller, messageUpdatedFrame{
		Type:        push.EventMessageUpdated,
		ChatID:      m.ChatID,
		MessageID:   messageID,
		MessageText: in.MessageText,
	})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	messageID := pathID(r, "messageID")
	m := s.data.messageByID(messageID)
	if m == nil || m.SenderID != caller {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	s.data.deleteMessage(messageID)
	writeData(w, http.StatusOK, map[string]string{"message": "message deleted"})
	s.hub.send(s.data.memberIDs(m.ChatID), caller, messageDeletedFrame{
		Type:      push.EventMessageDeleted,
		ChatID:    m.ChatID,
		MessageID: messageID,
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	if !s.data.isMember(chatID, caller) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	changed := s.data.markRead(chatID, caller)
	writeData(w, http.StatusOK, map[string]string{"message": "messages marked as read"})
	if changed {
		s.hub.send(s.data.memberIDs(chatID), caller, messagesReadFrame{
			Type:     push.EventMessagesRead,
			ChatID:   chatID,
			ReaderID: caller,
		})
	}
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	var in struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		MemberIDs   []int64 `json:"member_ids"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "group name must not be empty")
		return
	}
	for _, id := range in.MemberIDs {
		if s.data.userByID(id) == nil {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
	}
	id := s.data.createChat("group", in.Name, in.Description, caller, in.MemberIDs)
	writeData(w, http.StatusCreated, map[string]int64{"chat_id": id})
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if !s.isAdmin(chatID, caller) {
		writeError(w, http.StatusForbidden, "only the group admin may do that")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "group name must not be empty")
		return
	}
	s.data.updateGroup(chatID, in.Name, in.Description)
	writeData(w, http.StatusOK, map[string]string{"message": "group updated"})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	c := s.data.chatByID(chatID)
	if c == nil || !s.data.isMember(chatID, caller) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	rows := []userRow{}
	for _, m := range c.Members {
		if u := s.data.userByID(m.UserID); u != nil {
			rows = append(rows, userRow{ID: u.ID, Username: u.Username, Email: u.Email})
		}
	}
	writeData(w, http.StatusOK, rows)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if !readBody(w, r, &in) {
		return
	}
	if !s.isAdmin(chatID, caller) {
		writeError(w, http.StatusForbidden, "only the group admin may do that")
		return
	}
	if s.data.userByID(in.UserID) == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !s.data.addMember(chatID, in.UserID) {
		writeError(w, http.StatusConflict, "user is already a member")
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"message": "member added"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	chatID := pathID(r, "chatID")
	userID := pathID(r, "userID")
	// Admins remove anyone; a member may remove only themselves.
	if userID != caller && !s.isAdmin(chatID, caller) {
		writeError(w, http.StatusForbidden, "only the group admin may do that")
		return
	}
	if !s.data.removeMember(chatID, userID) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "member removed"})
}

func (s *Server) isAdmin(chatID, userID int64) bool {
	c := s.data.chatByID(chatID)
	if c == nil {
		return false
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Role == "admin"
		}
	}
	return false
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := s.parseToken(r.URL.Query().Get("token"))
	if id == 0 {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	s.hub.serve(w, r, id)
}
