package client

import (
	"context"
	"sync"

	"github.com/sakif/book-favorites/internal/model"
)

// FavoritesAPI is the part of *Client the Store uses.
type FavoritesAPI interface {
	List(ctx context.Context) ([]model.FavoriteView, error)
	Add(ctx context.Context, bookID, comment string) error
	Remove(ctx context.Context, bookID string) error
	UpdateComment(ctx context.Context, bookID, comment string) (string, error)
}

// Store holds the cached State and keeps it in step with the server.
//
// Each method issues one request and dispatches the matching action when
// it succeeds. A failed fetch moves the state to StatusFailed; a failed
// write is returned to the caller and leaves the state untouched. Calls
// may run concurrently; the state is only swapped under mu.
type Store struct {
	api FavoritesAPI

	mu    sync.Mutex
	state State
}

// NewStore creates a Store in the idle state.
func NewStore(api FavoritesAPI) *Store {
	return &Store{api: api, state: InitialState()}
}

// State returns the current state. The returned Items must not be
// modified.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the current state.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
}

// FetchFavorites replaces the cached items with the server's list.
func (s *Store) FetchFavorites(ctx context.Context) error {
	s.Dispatch(FetchPending{})

	items, err := s.api.List(ctx)
	if err != nil {
		s.Dispatch(FetchRejected{Err: err})
		return err
	}
	s.Dispatch(FetchFulfilled{Items: items})
	return nil
}

// AddFavorite adds book to the favorites and, once confirmed, caches it
// with comment unless it was already cached. When book carries only an ID, as from a command line, the
// cache is refreshed from the server instead, so it holds the catalog's
// title and author and never an id the catalog does not know. A failed
// refresh leaves the add in place and shows up as StatusFailed.
func (s *Store) AddFavorite(ctx context.Context, book model.Book, comment string) error {
	if err := s.api.Add(ctx, book.ID, comment); err != nil {
		return err
	}
	if book.Title == "" {
		_ = s.FetchFavorites(ctx)
		return nil
	}
	view := model.NewFavoriteView(book, model.FavoriteEntry{BookID: book.ID, Comment: comment})
	s.Dispatch(AddFulfilled{View: view})
	return nil
}

// RemoveFavorite removes bookID and drops it from the cache.
func (s *Store) RemoveFavorite(ctx context.Context, bookID string) error {
	if err := s.api.Remove(ctx, bookID); err != nil {
		return err
	}
	s.Dispatch(RemoveFulfilled{BookID: bookID})
	return nil
}

// UpdateComment changes the comment on bookID and patches the cached item
// with the comment the server returned.
func (s *Store) UpdateComment(ctx context.Context, bookID, comment string) error {
	stored, err := s.api.UpdateComment(ctx, bookID, comment)
	if err != nil {
		return err
	}
	s.Dispatch(CommentFulfilled{BookID: bookID, Comment: stored})
	return nil
}
