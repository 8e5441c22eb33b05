package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/book-favorites/internal/auth"
	"github.com/sakif/book-favorites/internal/handler"
	"github.com/sakif/book-favorites/internal/model"
	"github.com/sakif/book-favorites/internal/repository"
	"github.com/sakif/book-favorites/internal/repository/jsonfile"
	"github.com/sakif/book-favorites/internal/service"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	usersDoc = `[
		{"username":"alice","favorites":["B1",{"bookId":"B2","comment":"classic"},"GONE"]},
		{"username":"bob","favorites":[]}
	]`
	booksDoc = `[
		{"id":"B1","title":"Dune","author":"Frank Herbert","year":1965},
		{"id":"B2","title":"Emma","author":"Jane Austen"},
		{"id":"B3","title":"Ubik","author":"Philip K. Dick"}
	]`
)

// newTestRouter wires the favorites routes over a JSON file store in a
// temp dir. as selects the user injected into the request context; an
// empty string leaves the request unauthenticated.
func newTestRouter(t *testing.T, as string) (http.Handler, string) {
	t.Helper()
	return newTestRouterWith(t, as, usersDoc, booksDoc)
}

func newTestRouterWith(t *testing.T, as, users, books string) (http.Handler, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(users), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(books), 0o644))

	store, err := jsonfile.New(dir)
	require.NoError(t, err)
	docs := repository.NewDocuments(store)

	h := handler.NewFavoritesHandler(service.NewFavoritesService(docs, docs, testLogger), testLogger)
	return favoritesRouter(h, as), dir
}

func favoritesRouter(h *handler.FavoritesHandler, as string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if as != "" {
				r = r.WithContext(auth.WithUsername(r.Context(), as))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/favorites", h.HandleList)
	r.Post("/api/favorites", h.HandleAdd)
	r.Delete("/api/favorites/{bookId}", h.HandleRemove)
	r.Patch("/api/favorites/{bookId}/comment", h.HandleUpdateComment)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func listIDs(t *testing.T, h http.Handler) []string {
	t.Helper()
	rr := do(t, h, http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var views []model.FavoriteView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func TestFavoritesHandler_List(t *testing.T) {
	t.Run("joins with catalog and drops missing books", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodGet, "/api/favorites", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.JSONEq(t, `[
			{"id":"B1","title":"Dune","author":"Frank Herbert","year":1965,"comment":""},
			{"id":"B2","title":"Emma","author":"Jane Austen","comment":"classic"}
		]`, rr.Body.String())
	})

	t.Run("fresh user gets empty array", func(t *testing.T) {
		h, _ := newTestRouter(t, "bob")

		rr := do(t, h, http.MethodGet, "/api/favorites", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		h, _ := newTestRouter(t, "mallory")

		rr := do(t, h, http.MethodGet, "/api/favorites", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, handler.ErrorResponse{Error: "not_found", Message: "User not found"}, decodeError(t, rr))
	})

	t.Run("no authenticated user", func(t *testing.T) {
		h, _ := newTestRouter(t, "")

		rr := do(t, h, http.MethodGet, "/api/favorites", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestFavoritesHandler_Add(t *testing.T) {
	t.Run("adds and is idempotent", func(t *testing.T) {
		h, _ := newTestRouter(t, "bob")

		for range 2 {
			rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":"B3","comment":"x"}`)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"message":"Book added to favorites"}`, rr.Body.String())
		}
		assert.Equal(t, []string{"B3"}, listIDs(t, h))
	})

	t.Run("comment is optional", func(t *testing.T) {
		h, _ := newTestRouter(t, "bob")

		rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":"B1"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"B1"}, listIDs(t, h))
	})

	t.Run("numeric bookId", func(t *testing.T) {
		h, dir := newTestRouterWith(t, "bob", usersDoc,
			`[{"id":1,"title":"Dune","author":"Frank Herbert"}]`)

		rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":1,"comment":"spice"}`)
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		raw, err := os.ReadFile(filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"bookId": "1"`)

		rr = do(t, h, http.MethodGet, "/api/favorites", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[{"id":1,"title":"Dune","author":"Frank Herbert","comment":"spice"}]`, rr.Body.String())
	})

	t.Run("non-scalar bookId", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":{"id":"B3"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid JSON body", decodeError(t, rr).Message)
	})

	t.Run("missing bookId does not touch the store", func(t *testing.T) {
		h, dir := newTestRouter(t, "alice")

		for _, body := range []string{`{"comment":"x"}`, `{"bookId":""}`, ``} {
			rr := do(t, h, http.MethodPost, "/api/favorites", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
			assert.Equal(t, handler.ErrorResponse{Error: "validation_error", Message: "Book ID required"}, decodeError(t, rr))
		}

		raw, err := os.ReadFile(filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		assert.Equal(t, usersDoc, string(raw))
	})

	t.Run("malformed body", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		h, _ := newTestRouter(t, "mallory")

		rr := do(t, h, http.MethodPost, "/api/favorites", `{"bookId":"B1"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestFavoritesHandler_Remove(t *testing.T) {
	h, _ := newTestRouter(t, "alice")

	rr := do(t, h, http.MethodDelete, "/api/favorites/B1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Book removed from favorites"}`, rr.Body.String())
	assert.Equal(t, []string{"B2"}, listIDs(t, h))

	// Removing again is still a success.
	rr = do(t, h, http.MethodDelete, "/api/favorites/B1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Book removed from favorites"}`, rr.Body.String())
}

func TestFavoritesHandler_UpdateComment(t *testing.T) {
	t.Run("updates legacy entry in place", func(t *testing.T) {
		h, dir := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B1/comment", `{"comment":"re-read"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Comment updated","comment":"re-read"}`, rr.Body.String())
		assert.Equal(t, []string{"B1", "B2"}, listIDs(t, h))

		raw, err := os.ReadFile(filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"bookId": "B1"`)
		assert.Contains(t, string(raw), `"comment": "re-read"`)
	})

	t.Run("empty comment clears it", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B2/comment", `{"comment":""}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Comment updated","comment":""}`, rr.Body.String())
	})

	t.Run("null comment clears it", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B2/comment", `{"comment":null}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Comment updated","comment":""}`, rr.Body.String())

		rr = do(t, h, http.MethodGet, "/api/favorites", "")
		var views []model.FavoriteView
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
		require.Len(t, views, 2)
		assert.Equal(t, "B2", views[1].ID)
		assert.Empty(t, views[1].Comment)
	})

	t.Run("non-string comment", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B2/comment", `{"comment":7}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing comment", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		for _, body := range []string{`{}`, `{"other":"x"}`, ``} {
			rr := do(t, h, http.MethodPatch, "/api/favorites/B2/comment", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
			assert.Equal(t, "Comment is required", decodeError(t, rr).Message)
		}
	})

	t.Run("not a favorite", func(t *testing.T) {
		h, _ := newTestRouter(t, "alice")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B3/comment", `{"comment":"x"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Book not in favorites", decodeError(t, rr).Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		h, _ := newTestRouter(t, "mallory")

		rr := do(t, h, http.MethodPatch, "/api/favorites/B1/comment", `{"comment":"x"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "User not found", decodeError(t, rr).Message)
	})
}

// failingFavorites returns an infrastructure error from every call.
type failingFavorites struct{}

var errDisk = errors.New("open /var/lib/favorites/users.json: permission denied")

func (failingFavorites) List(context.Context, string) ([]model.FavoriteView, error) {
	return nil, errDisk
}
func (failingFavorites) Add(context.Context, string, string, string) (bool, error) {
	return false, errDisk
}
func (failingFavorites) Remove(context.Context, string, string) (bool, error) {
	return false, errDisk
}
func (failingFavorites) UpdateComment(context.Context, string, string, *string) (string, error) {
	return "", errDisk
}

func TestFavoritesHandler_InternalErrorsAreHidden(t *testing.T) {
	h := favoritesRouter(handler.NewFavoritesHandler(failingFavorites{}, testLogger), "alice")

	requests := []struct{ method, path, body string }{
		{http.MethodGet, "/api/favorites", ""},
		{http.MethodPost, "/api/favorites", `{"bookId":"B1"}`},
		{http.MethodDelete, "/api/favorites/B1", ""},
		{http.MethodPatch, "/api/favorites/B1/comment", `{"comment":"x"}`},
	}
	for _, req := range requests {
		rr := do(t, h, req.method, req.path, req.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, req.path)
		body := decodeError(t, rr)
		assert.Equal(t, "internal_error", body.Error)
		assert.NotContains(t, body.Message, "/var/lib")
	}
}
