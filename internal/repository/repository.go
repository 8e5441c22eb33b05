// Package repository defines the persistence boundary of the favorites
// service.
//
// DOCUMENT STORE:
// The catalog keeps each collection (users, books) as ONE document holding
// an array of records. There are no partial updates and no transactions:
// callers load a whole collection, change it in memory, and store the
// whole collection back. DocumentStore captures exactly that contract so
// the backend (JSON files today, SQLite rows, anything transactional
// later) can change without touching the favorites logic.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/book-favorites/internal/model"
)

// Collection names a whole document in the store.
type Collection string

const (
	Users Collection = "users"
	Books Collection = "books"
)

// DocumentStore loads and stores whole collections.
//
// Load decodes the collection into v (a pointer to a slice). A collection
// that was never stored loads as an empty array, not an error.
// Store replaces the collection with the JSON encoding of v.
type DocumentStore interface {
	Load(ctx context.Context, c Collection, v any) error
	Store(ctx context.Context, c Collection, v any) error
}

// UserRepository reads and rewrites the users collection.
type UserRepository interface {
	LoadUsers(ctx context.Context) ([]model.User, error)
	SaveUsers(ctx context.Context, users []model.User) error
}

// BookRepository reads the book catalog. This service never writes books.
type BookRepository interface {
	LoadBooks(ctx context.Context) ([]model.Book, error)
}

// ErrUnknownCollection is returned by stores asked for a collection name
// they were not configured with.
var ErrUnknownCollection = errors.New("unknown collection")

// Documents adapts any DocumentStore to the typed repositories.
type Documents struct {
	store DocumentStore
}

// compile-time checks
var (
	_ UserRepository = (*Documents)(nil)
	_ BookRepository = (*Documents)(nil)
)

// NewDocuments wraps a DocumentStore.
func NewDocuments(store DocumentStore) *Documents {
	return &Documents{store: store}
}

func (d *Documents) LoadUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := d.store.Load(ctx, Users, &users); err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return users, nil
}

func (d *Documents) SaveUsers(ctx context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	if err := d.store.Store(ctx, Users, users); err != nil {
		return fmt.Errorf("saving users: %w", err)
	}
	return nil
}

func (d *Documents) LoadBooks(ctx context.Context) ([]model.Book, error) {
	books := []model.Book{}
	if err := d.store.Load(ctx, Books, &books); err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	return books, nil
}

// Copy replaces each named collection in dst with its content in src.
// Records are moved as raw JSON, so fields this service doesn't model
// survive the trip. Used to seed a new backend from the JSON files.
func Copy(ctx context.Context, dst, src DocumentStore, collections ...Collection) error {
	for _, c := range collections {
		doc := []json.RawMessage{}
		if err := src.Load(ctx, c, &doc); err != nil {
			return fmt.Errorf("copying %s: %w", c, err)
		}
		if err := dst.Store(ctx, c, doc); err != nil {
			return fmt.Errorf("copying %s: %w", c, err)
		}
	}
	return nil
}
