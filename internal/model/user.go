package model

import "fmt"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UnmarshalJSON decodes a user tolerating the backend's field spelling
// variants. A missing username gets the "User #<id>" placeholder the UI shows.
func (u *User) UnmarshalJSON(data []byte) error {
	f, err := newFields(data)
	if err != nil {
		return err
	}
	u.ID = f.int64Of("id")
	u.Username = f.stringOf("username")
	if u.Username == "" {
		u.Username = f.stringOf("user_name")
	}
	if u.Username == "" {
		u.Username = fmt.Sprintf("User #%d", u.ID)
	}
	u.Email = f.stringOf("email")
	return nil
}

// Identity is the authenticated subject decoded from the session credential.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
