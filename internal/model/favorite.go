package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FavoriteEntry links a user to one book, with an optional note.
//
// TWO STORAGE SHAPES:
// Older users documents store favorites as bare book ids:
//
//	"favorites": ["B1", "B2"]
//
// Newer ones store objects:
//
//	"favorites": [{"bookId": "B1", "comment": "re-read every summer"}]
//
// UnmarshalJSON accepts both and always produces the structured form, so
// nothing past the decoding step needs to know the legacy shape existed.
// MarshalJSON (the default struct encoding) always writes the object form,
// which means any entry we persist is migrated as a side effect.
type FavoriteEntry struct {
	BookID  string `json:"bookId"`
	Comment string `json:"comment"`
}

// UnmarshalJSON decodes either a bare id (string or number) or an object.
func (e *FavoriteEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("favorite entry: empty value")
	}

	if data[0] != '{' {
		// Legacy shape: the whole value is the book id.
		id, err := decodeID(data)
		if err != nil {
			return fmt.Errorf("favorite entry: %w", err)
		}
		*e = FavoriteEntry{BookID: id}
		return nil
	}

	fields, err := splitFields(data)
	if err != nil {
		return fmt.Errorf("favorite entry: %w", err)
	}
	id, err := decodeID(fields["bookId"])
	if err != nil {
		return fmt.Errorf("favorite entry bookId: %w", err)
	}
	comment, err := decodeString(fields, "comment")
	if err != nil {
		return fmt.Errorf("favorite entry: %w", err)
	}

	*e = FavoriteEntry{BookID: id, Comment: comment}
	return nil
}

// FavoriteView is what a client sees for one favorite: the catalog book
// with the user's comment attached. It is built on every list request
// and never stored.
type FavoriteView struct {
	Book
	Comment string
}

// MarshalJSON flattens the view to {id, title, author, ..., comment}.
func (v FavoriteView) MarshalJSON() ([]byte, error) {
	owned := v.Book.owned()
	owned["comment"] = v.Comment
	return mergeFields(v.Book.Extra, owned)
}

// UnmarshalJSON is the inverse of MarshalJSON, used by the API client.
func (v *FavoriteView) UnmarshalJSON(data []byte) error {
	if err := v.Book.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("favorite view: %w", err)
	}
	comment, err := decodeString(v.Book.Extra, "comment")
	if err != nil {
		return fmt.Errorf("favorite view: %w", err)
	}
	delete(v.Book.Extra, "comment")
	v.Comment = comment
	return nil
}

// NewFavoriteView joins an entry with its book.
func NewFavoriteView(book Book, entry FavoriteEntry) FavoriteView {
	return FavoriteView{Book: book, Comment: entry.Comment}
}

// compile-time checks
var (
	_ json.Unmarshaler = (*FavoriteEntry)(nil)
	_ json.Marshaler   = FavoriteView{}
	_ json.Unmarshaler = (*FavoriteView)(nil)
)
