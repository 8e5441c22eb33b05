// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → loads/stores whole collections
//
// Services take repository INTERFACES, never a concrete store, so tests
// inject in-memory fakes and the JSON-file backend can be swapped for
// SQLite in one line of server wiring.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/book-favorites/internal/apperror"
	"github.com/sakif/book-favorites/internal/model"
	"github.com/sakif/book-favorites/internal/repository"
)

// Error messages sent to clients. They are part of the API contract.
const (
	MsgBookIDRequired  = "Book ID required"
	MsgCommentRequired = "Comment is required"
	MsgUserNotFound    = "User not found"
	MsgNotInFavorites  = "Book not in favorites"
)

// FavoritesService implements list/add/remove/update-comment for the
// authenticated user's own favorites.
//
// READ-MODIFY-WRITE:
// Every mutation loads the WHOLE users collection, changes one user's
// favorites in memory and stores the whole collection back. Two requests
// doing that at the same time would each read the old document and the
// second store would silently discard the first one's change. writeMu
// serializes mutations within this process so that can't happen here.
// Another process writing the same store is still last-write-wins.
type FavoritesService struct {
	users  repository.UserRepository
	books  repository.BookRepository
	logger *slog.Logger

	writeMu sync.Mutex
}

// NewFavoritesService creates a FavoritesService.
func NewFavoritesService(users repository.UserRepository, books repository.BookRepository, logger *slog.Logger) *FavoritesService {
	return &FavoritesService{
		users:  users,
		books:  books,
		logger: logger,
	}
}

// List returns the user's favorites joined with the catalog, in stored
// order. Entries whose book has been removed from the catalog are left
// out. A user with no favorites gets an empty (non-nil) slice.
func (s *FavoritesService) List(ctx context.Context, username string) ([]model.FavoriteView, error) {
	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	i, err := findUser(users, username)
	if err != nil {
		return nil, err
	}
	user := &users[i]

	books, err := s.books.LoadBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	byID := make(map[string]model.Book, len(books))
	for _, b := range books {
		if _, dup := byID[b.ID]; !dup {
			byID[b.ID] = b
		}
	}

	views := make([]model.FavoriteView, 0, len(user.Favorites))
	for _, fav := range user.Favorites {
		book, ok := byID[fav.BookID]
		if !ok {
			s.logger.Debug("favorite references missing book",
				slog.String("user", username),
				slog.String("bookId", fav.BookID),
			)
			continue
		}
		views = append(views, model.NewFavoriteView(book, fav))
	}

	return views, nil
}

// Add appends bookID to the user's favorites.
//
// Adding a book that is already a favorite changes nothing: the existing
// comment is kept and no duplicate is created. added reports which case
// happened; the HTTP API deliberately answers the same way for both.
func (s *FavoritesService) Add(ctx context.Context, username, bookID, comment string) (added bool, err error) {
	if bookID == "" {
		return false, apperror.ValidationFailed("bookId", MsgBookIDRequired)
	}

	err = s.mutate(ctx, username, func(user *model.User) (bool, error) {
		if user.FavoriteIndex(bookID) != -1 {
			return false, nil
		}
		user.Favorites = append(user.Favorites, model.FavoriteEntry{BookID: bookID, Comment: comment})
		added = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if added {
		s.logger.Info("favorite added", slog.String("user", username), slog.String("bookId", bookID))
	}
	return added, nil
}

// Remove deletes bookID from the user's favorites, keeping the order of
// the rest. Removing a book that isn't a favorite is not an error.
func (s *FavoritesService) Remove(ctx context.Context, username, bookID string) (removed bool, err error) {
	if bookID == "" {
		return false, apperror.ValidationFailed("bookId", MsgBookIDRequired)
	}

	err = s.mutate(ctx, username, func(user *model.User) (bool, error) {
		i := user.FavoriteIndex(bookID)
		if i == -1 {
			return false, nil
		}
		user.Favorites = append(user.Favorites[:i], user.Favorites[i+1:]...)
		removed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.logger.Info("favorite removed", slog.String("user", username), slog.String("bookId", bookID))
	}
	return removed, nil
}

// UpdateComment replaces the comment on an existing favorite, in place.
//
// comment is a pointer because "no comment given" (nil) is an error while
// an empty comment ("") is a valid way to clear it.
func (s *FavoritesService) UpdateComment(ctx context.Context, username, bookID string, comment *string) (string, error) {
	if bookID == "" {
		return "", apperror.ValidationFailed("bookId", MsgBookIDRequired)
	}
	if comment == nil {
		return "", apperror.ValidationFailed("comment", MsgCommentRequired)
	}

	err := s.mutate(ctx, username, func(user *model.User) (bool, error) {
		i := user.FavoriteIndex(bookID)
		if i == -1 {
			return false, apperror.NotFound(MsgNotInFavorites)
		}
		user.Favorites[i] = model.FavoriteEntry{BookID: bookID, Comment: *comment}
		return true, nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("favorite comment updated", slog.String("user", username), slog.String("bookId", bookID))
	return *comment, nil
}

// mutate runs one read-modify-write cycle on the users collection.
// fn reports whether it changed anything; unchanged collections are not
// written back.
func (s *FavoritesService) mutate(ctx context.Context, username string, fn func(*model.User) (bool, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("loading favorites: %w", err)
	}
	i, err := findUser(users, username)
	if err != nil {
		return err
	}

	changed, err := fn(&users[i])
	if err != nil || !changed {
		return err
	}

	if err := s.users.SaveUsers(ctx, users); err != nil {
		s.logger.Error("failed to save favorites",
			slog.String("user", username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("saving favorites: %w", err)
	}
	return nil
}

// findUser returns the index of username in users.
func findUser(users []model.User, username string) (int, error) {
	for i := range users {
		if users[i].Username == username {
			return i, nil
		}
	}
	return -1, apperror.NotFound(MsgUserNotFound)
}
