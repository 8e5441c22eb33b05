// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
)

// User is one record of the users document.
//
// WHY NOT A PLAIN STRUCT WITH JSON TAGS?
// The users document is shared with the rest of the catalog application,
// which stores its own fields on each user (email, roles, created dates...).
// Every favorites mutation rewrites the whole document, so a plain struct
// would silently strip anything it doesn't declare. Extra keeps those
// members verbatim across a read-modify-write.
//
// PasswordHash is the bcrypt hash stored under "password". It is only read
// by the login flow and is never sent back to clients.
type User struct {
	Username     string
	PasswordHash string
	Favorites    []FavoriteEntry
	Extra        map[string]json.RawMessage
}

// UnmarshalJSON decodes a user record, normalizing every favorite entry.
// A missing or null favorites member decodes as an empty list.
func (u *User) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return fmt.Errorf("user: %w", err)
	}

	if u.Username, err = decodeString(fields, "username"); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	if u.PasswordHash, err = decodeString(fields, "password"); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	u.Favorites = []FavoriteEntry{}
	if raw, ok := fields["favorites"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &u.Favorites); err != nil {
			return fmt.Errorf("user %q favorites: %w", u.Username, err)
		}
		if u.Favorites == nil {
			u.Favorites = []FavoriteEntry{}
		}
	}

	delete(fields, "username")
	delete(fields, "password")
	delete(fields, "favorites")
	u.Extra = fields
	return nil
}

// MarshalJSON writes the record back with favorites in structured form.
func (u User) MarshalJSON() ([]byte, error) {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []FavoriteEntry{}
	}
	owned := map[string]any{
		"username":  u.Username,
		"favorites": favorites,
	}
	if u.PasswordHash != "" {
		owned["password"] = u.PasswordHash
	}
	return mergeFields(u.Extra, owned)
}

// FavoriteIndex returns the position of the entry for bookID, or -1.
// bookId values are unique per user, so the first match is the only one.
func (u *User) FavoriteIndex(bookID string) int {
	for i, fav := range u.Favorites {
		if fav.BookID == bookID {
			return i
		}
	}
	return -1
}
