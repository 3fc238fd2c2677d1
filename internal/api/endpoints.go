package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chatx/chatx-go/internal/model"
)

// Health checks backend liveness. Unauthenticated; the payload is bare.
func (g *Gateway) Health(ctx context.Context) (*model.Health, error) {
	raw, err := g.do(ctx, "/health", callOptions{})
	if err != nil {
		return nil, err
	}
	var health model.Health
	if err := json.Unmarshal(raw, &health); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &health, nil
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token. Unauthenticated.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, error) {
	raw, err := g.do(ctx, "/users/authentication/token", callOptions{
		method: http.MethodPost,
		body:   loginPayload{Email: email, Password: password},
	})
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account; the backend mails an activation link.
func (g *Gateway) Register(ctx context.Context, username, email, password string) error {
	_, err := g.do(ctx, "/users/authentication", callOptions{
		method: http.MethodPost,
		body:   registerPayload{Username: username, Email: email, Password: password},
	})
	return err
}

// Activate confirms an account with the mailed activation token.
func (g *Gateway) Activate(ctx context.Context, token string) error {
	_, err := g.do(ctx, "/users/activate/"+url.PathEscape(token), callOptions{
		method: http.MethodPut,
	})
	return err
}

// SearchUsers lists users matching search, paged.
func (g *Gateway) SearchUsers(ctx context.Context, search string, limit, offset int) ([]model.User, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if search = strings.TrimSpace(search); search != "" {
		query.Set("search", search)
	}
	raw, err := g.do(ctx, "/users?"+query.Encode(), callOptions{requiresAuth: true})
	if err != nil {
		return nil, err
	}
	return decodeList[model.User](raw, "users")
}

// Chats fetches the caller's chat list snapshot, optionally filtered.
func (g *Gateway) Chats(ctx context.Context, search string) ([]model.Chat, error) {
	path := "/chats"
	if search = strings.TrimSpace(search); search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	raw, err := g.do(ctx, path, callOptions{requiresAuth: true})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Chat](raw, "chats")
}

type createPrivatePayload struct {
	ReceiverID int64 `json:"receiver_id"`
}

// CreatePrivateChat opens (or finds) the private chat with receiverID.
func (g *Gateway) CreatePrivateChat(ctx context.Context, receiverID int64) (int64, error) {
	raw, err := g.do(ctx, "/chats", callOptions{
		method:       http.MethodPost,
		requiresAuth: true,
		body:         createPrivatePayload{ReceiverID: receiverID},
	})
	if err != nil {
		return 0, err
	}
	return chatIDFrom(raw), nil
}

// ChatMessages fetches the full message window of one chat.
func (g *Gateway) ChatMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	raw, err := g.do(ctx, fmt.Sprintf("/chats/%d/messages", chatID), callOptions{requiresAuth: true})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Message](raw, "messages")
}

// DeleteChat removes a chat for the caller.
func (g *Gateway) DeleteChat(ctx context.Context, chatID int64) error {
	_, err := g.do(ctx, fmt.Sprintf("/chats/%d", chatID), callOptions{
		method:       http.MethodDelete,
		requiresAuth: true,
	})
	return err
}

// MarkChatRead flags every unread message in the chat as read.
func (g *Gateway) MarkChatRead(ctx context.Context, chatID int64) error {
	_, err := g.do(ctx, fmt.Sprintf("/messages/chats/%d/read", chatID), callOptions{
		method:       http.MethodPatch,
		requiresAuth: true,
	})
	return err
}

type sendMessagePayload struct {
	ChatID      int64  `json:"chat_id"`
	MessageText string `json:"message_text"`
}

// SendMessage posts a message and returns the server's echo of it.
func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) (*model.Message, error) {
	raw, err := g.do(ctx, "/messages", callOptions{
		method:       http.MethodPost,
		requiresAuth: true,
		body:         sendMessagePayload{ChatID: chatID, MessageText: text},
	})
	if err != nil {
		return nil, err
	}
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

type editMessagePayload struct {
	MessageText string `json:"message_text"`
}

// EditMessage replaces the text of an own message.
func (g *Gateway) EditMessage(ctx context.Context, messageID int64, text string) error {
	_, err := g.do(ctx, fmt.Sprintf("/messages/%d", messageID), callOptions{
		method:       http.MethodPatch,
		requiresAuth: true,
		body:         editMessagePayload{MessageText: text},
	})
	return err
}

// DeleteMessage removes an own message.
func (g *Gateway) DeleteMessage(ctx context.Context, messageID int64) error {
	_, err := g.do(ctx, fmt.Sprintf("/messages/%d", messageID), callOptions{
		method:       http.MethodDelete,
		requiresAuth: true,
	})
	return err
}

type createGroupPayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MemberIDs   []int64 `json:"member_ids"`
}

// CreateGroup creates a group chat with the given members.
func (g *Gateway) CreateGroup(ctx context.Context, name, description string, memberIDs []int64) (int64, error) {
	raw, err := g.do(ctx, "/groups", callOptions{
		method:       http.MethodPost,
		requiresAuth: true,
		body:         createGroupPayload{Name: name, Description: description, MemberIDs: memberIDs},
	})
	if err != nil {
		return 0, err
	}
	return chatIDFrom(raw), nil
}

type updateGroupPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateGroup renames a group chat.
func (g *Gateway) UpdateGroup(ctx context.Context, chatID int64, name, description string) error {
	_, err := g.do(ctx, fmt.Sprintf("/groups/%d", chatID), callOptions{
		method:       http.MethodPatch,
		requiresAuth: true,
		body:         updateGroupPayload{Name: name, Description: description},
	})
	return err
}

// Members lists the members of a group chat.
func (g *Gateway) Members(ctx context.Context, chatID int64) ([]model.User, error) {
	raw, err := g.do(ctx, fmt.Sprintf("/groups/%d/members", chatID), callOptions{requiresAuth: true})
	if err != nil {
		return nil, err
	}
	return decodeList[model.User](raw, "members")
}

type addMemberPayload struct {
	UserID int64 `json:"user_id"`
}

// AddMember adds a user to a group chat.
func (g *Gateway) AddMember(ctx context.Context, chatID, userID int64) error {
	_, err := g.do(ctx, fmt.Sprintf("/groups/%d/members", chatID), callOptions{
		method:       http.MethodPost,
		requiresAuth: true,
		body:         addMemberPayload{UserID: userID},
	})
	return err
}

// RemoveMember removes a user from a group chat.
func (g *Gateway) RemoveMember(ctx context.Context, chatID, userID int64) error {
	_, err := g.do(ctx, fmt.Sprintf("/groups/%d/%d/member", chatID, userID), callOptions{
		method:       http.MethodDelete,
		requiresAuth: true,
	})
	return err
}

// decodeList unmarshals a JSON array; a null payload is an empty list.
func decodeList[T any](raw json.RawMessage, what string) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return out, nil
}

// chatIDFrom extracts the created chat id; the backend has returned both a
// bare number and a {chat_id} object over time.
func chatIDFrom(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ChatID int64 `json:"chat_id"`
		AltID  int64 `json:"chatId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ChatID > 0 {
			return obj.ChatID
		}
		return obj.AltID
	}
	return 0
}
