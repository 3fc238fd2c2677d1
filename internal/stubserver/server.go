package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/push"
)

// Server is an in-memory rendition of the backend, good enough for the
// client to run against without a database: same routes, same envelope,
// same push events. Состояние живёт только в памяти процесса.
type Server struct {
	data    *data
	hub     *hub
	secret  []byte
	version string
	router  chi.Router
}

func NewServer() *Server {
	s := &Server{
		data:    newData(),
		hub:     newHub(),
		secret:  []byte("stub-" + time.Now().Format("20060102")),
		version: "stub",
	}
	s.routes()
	return s
}

// Handler exposes the full route tree, /api/v1 prefix included.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(recoverJSON)
	r.Use(requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/users/authentication", s.handleRegister)
		r.Put("/users/activate/{token}", s.handleActivate)
		r.Post("/users/authentication/token", s.handleLogin)
		r.Get("/ws", s.handleWS)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/users", s.handleUsers)
			r.Get("/chats", s.handleChats)
			r.Post("/chats", s.handleCreatePrivate)
			r.Delete("/chats/{chatID}", s.handleDeleteChat)
			r.Get("/chats/{chatID}/messages", s.handleMessages)
			r.Post("/messages", s.handleSendMessage)
			r.Patch("/messages/{messageID}", s.handleEditMessage)
			r.Delete("/messages/{messageID}", s.handleDeleteMessage)
			r.Patch("/messages/chats/{chatID}/read", s.handleMarkRead)
			r.Post("/groups", s.handleCreateGroup)
			r.Patch("/groups/{chatID}", s.handleUpdateGroup)
			r.Get("/groups/{chatID}/members", s.handleMembers)
			r.Post("/groups/{chatID}/members", s.handleAddMember)
			r.Delete("/groups/{chatID}/{userID}/member", s.handleRemoveMember)
		})
	})
	s.router = r
}

// SeedUser creates an already-activated account, for tests and demo data.
func (s *Server) SeedUser(username, email, password string) int64 {
	id, token, ok := s.data.createUser(username, email, password)
	if !ok {
		return 0
	}
	s.data.activate(token)
	return id
}

// ActivationToken looks up the pending activation token for an email. The
// real backend mails it; the stub hands it out for inspection.
func (s *Server) ActivationToken(email string) string {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for token, id := range s.data.activations {
		if u, ok := s.data.users[id]; ok && u.Email == email {
			return token
		}
	}
	return ""
}

// IssueToken mints a credential for an existing user, bypassing login.
func (s *Server) IssueToken(userID int64) string {
	u := s.data.userByID(userID)
	if u == nil {
		return ""
	}
	return s.signToken(u)
}

func (s *Server) signToken(u *user) string {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(u.ID, 10),
		"username": u.Username,
		"exp":      time.Now().Add(72 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		logger.Errorf("stub: sign token: %v", err)
		return ""
	}
	return signed
}

func (s *Server) parseToken(raw string) int64 {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return 0
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

type ctxKey int

const userKey ctxKey = 0

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		id := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if id == 0 {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

func callerID(r *http.Request) int64 {
	id, _ := r.Context().Value(userKey).(int64)
	return id
}

func writeData(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// --- wire rows ---

type chatRow struct {
	ChatID        int64  `json:"chat_id"`
	ChatType      string `json:"chat_type"`
	ChatName      string `json:"chat_name"`
	UserRole      string `json:"user_role"`
	JoinedAt      string `json:"joined_at"`
	LastMessage   string `json:"last_message"`
	LastMessageAt string `json:"last_message_at"`
	UnreadCount   int    `json:"unread_count"`
}

type messageRow struct {
	ID          int64  `json:"id"`
	ChatID      int64  `json:"chat_id"`
	SenderID    int64  `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	MessageText string `json:"message_text"`
	CreatedAt   string `json:"created_at"`
	IsRead      bool   `json:"is_read"`
}

type userRow struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Push frames carry the event type inline, matching what the real hub sends.

type newMessageFrame struct {
	Type       push.EventType `json:"type"`
	ChatID     int64          `json:"chat_id"`
	SenderID   int64          `json:"sender_id"`
	SenderName string         `json:"sender_name"`
	Content    string         `json:"content"`
	CreatedAt  string         `json:"created_at"`
}

type messageUpdatedFrame struct {
	Type        push.EventType `json:"type"`
	ChatID      int64          `json:"chat_id"`
	MessageID   int64          `json:"message_id"`
	MessageText string         `json:"message_text"`
}

type messageDeletedFrame struct {
	Type      push.EventType `json:"type"`
	ChatID    int64          `json:"chat_id"`
	MessageID int64          `json:"message_id"`
}

type messagesReadFrame struct {
	Type     push.EventType `json:"type"`
	ChatID   int64          `json:"chat_id"`
	ReaderID int64          `json:"reader_id"`
}

func (s *Server) messageToRow(m *message) messageRow {
	senderName := ""
	if u := s.data.userByID(m.SenderID); u != nil {
		senderName = u.Username
	}
	return messageRow{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		SenderName:  senderName,
		MessageText: m.Text,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		IsRead:      m.IsRead,
	}
}
