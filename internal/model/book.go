package model

import (
	"encoding/json"
	"fmt"
)

// Book is a catalog record. This service only ever reads books; the id,
// title and author are typed, everything else the catalog stores rides
// along in Extra and is passed through to clients untouched.
//
// ID is always the string form. The id as the catalog wrote it is kept
// too, so a numeric id goes back out as a number.
type Book struct {
	ID     string
	Title  string
	Author string
	Extra  map[string]json.RawMessage

	rawID json.RawMessage
}

// UnmarshalJSON accepts any catalog object with an "id" member.
func (b *Book) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return fmt.Errorf("book: %w", err)
	}

	if b.ID, err = decodeID(fields["id"]); err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	b.rawID = fields["id"]
	if b.Title, err = decodeString(fields, "title"); err != nil {
		return fmt.Errorf("book: %w", err)
	}
	if b.Author, err = decodeString(fields, "author"); err != nil {
		return fmt.Errorf("book: %w", err)
	}

	delete(fields, "id")
	delete(fields, "title")
	delete(fields, "author")
	b.Extra = fields
	return nil
}

// MarshalJSON writes the book back as a flat object.
func (b Book) MarshalJSON() ([]byte, error) {
	return mergeFields(b.Extra, b.owned())
}

func (b Book) owned() map[string]any {
	return map[string]any{
		"id":     b.idJSON(),
		"title":  b.Title,
		"author": b.Author,
	}
}

// idJSON is the id as decoded, unless ID was changed since.
func (b Book) idJSON() any {
	if len(b.rawID) > 0 {
		if id, err := decodeID(b.rawID); err == nil && id == b.ID {
			return b.rawID
		}
	}
	return b.ID
}
