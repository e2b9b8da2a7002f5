// Package model defines domain entities exchanged with the booking backend.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ID identifies any backend resource. Backend snapshots disagree on numeric vs string
// identifiers, so decoding accepts both and the client always carries a string.
type ID string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id: want string or number")
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return errors.New("id: want integer")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the identity of the logged in account.
type User struct {
	ID        ID        `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tokens is an access/refresh credential pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the client-side view of who is logged in.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
	RememberMe   bool
}

// Page is a paginated list response.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}
