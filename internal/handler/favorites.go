package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/book-favorites/internal/apperror"
	"github.com/sakif/book-favorites/internal/auth"
	"github.com/sakif/book-favorites/internal/model"
	"github.com/sakif/book-favorites/internal/service"
	"github.com/sakif/book-favorites/internal/validation"
)

// Success messages. Add and remove answer the same way whether or not the
// collection actually changed.
const (
	MsgAdded          = "Book added to favorites"
	MsgRemoved        = "Book removed from favorites"
	MsgCommentUpdated = "Comment updated"
)

// FavoritesService is what FavoritesHandler needs from the service layer.
// *service.FavoritesService implements it.
type FavoritesService interface {
	List(ctx context.Context, username string) ([]model.FavoriteView, error)
	Add(ctx context.Context, username, bookID, comment string) (bool, error)
	Remove(ctx context.Context, username, bookID string) (bool, error)
	UpdateComment(ctx context.Context, username, bookID string, comment *string) (string, error)
}

// FavoritesHandler serves /api/favorites for the authenticated user.
//
// Every route sits behind auth.RequireAuth, so the username always comes
// from the request context and a caller can only ever touch their own
// favorites.
type FavoritesHandler struct {
	favorites FavoritesService
	validate  *validation.Validator
	logger    *slog.Logger
}

// NewFavoritesHandler creates a FavoritesHandler.
func NewFavoritesHandler(favorites FavoritesService, logger *slog.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		favorites: favorites,
		validate: validation.New(map[string]string{
			"bookId": service.MsgBookIDRequired,
		}),
		logger: logger,
	}
}

type addFavoriteRequest struct {
	BookID  model.ID `json:"bookId" validate:"required"`
	Comment string   `json:"comment"`
}

// commentRequest tells {} (missing, rejected) apart from {"comment": ""}
// and {"comment": null}, which both clear the comment.
type commentRequest struct {
	Comment optionalString `json:"comment"`
}

// optionalString records whether a JSON member was present at all.
type optionalString struct {
	value string
	set   bool
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		o.value = ""
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// ptr is nil when the member was absent.
func (o optionalString) ptr() *string {
	if !o.set {
		return nil
	}
	return &o.value
}

type commentResponse struct {
	Message string `json:"message"`
	Comment string `json:"comment"`
}

// HandleList returns the caller's favorites joined with the catalog.
//
// HTTP: GET /api/favorites
//
//	[{"id":"B1","title":"Dune","author":"Frank Herbert","comment":"spice"}]
func (h *FavoritesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	views, err := h.favorites.List(r.Context(), username)
	if err != nil {
		h.fail(w, r, "list favorites", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleAdd adds a book to the caller's favorites.
//
// HTTP: POST /api/favorites
// REQUEST BODY: {"bookId": "B1", "comment": "optional"}
//
// bookId may also be a JSON number.
func (h *FavoritesHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	var req addFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.favorites.Add(r.Context(), username, string(req.BookID), req.Comment); err != nil {
		h.fail(w, r, "add favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: MsgAdded})
}

// HandleRemove removes a book from the caller's favorites.
//
// HTTP: DELETE /api/favorites/{bookId}
func (h *FavoritesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	if _, err := h.favorites.Remove(r.Context(), username, chi.URLParam(r, "bookId")); err != nil {
		h.fail(w, r, "remove favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: MsgRemoved})
}

// HandleUpdateComment replaces the comment on an existing favorite.
//
// HTTP: PATCH /api/favorites/{bookId}/comment
// REQUEST BODY: {"comment": "new text"}
func (h *FavoritesHandler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.favorites.UpdateComment(r.Context(), username, chi.URLParam(r, "bookId"), req.Comment.ptr())
	if err != nil {
		h.fail(w, r, "update comment", err)
		return
	}
	writeJSON(w, http.StatusOK, commentResponse{Message: MsgCommentUpdated, Comment: comment})
}

// username reads the authenticated user, answering 401 when the route was
// wired without RequireAuth.
func (h *FavoritesHandler) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return username, true
}

// fail logs unexpected errors before writing them. Domain errors are the
// client's problem and are not logged.
func (h *FavoritesHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !isDomainError(err) {
		h.logger.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}
