package client

import (
	"slices"

	"github.com/sakif/book-favorites/internal/model"
)

// Status is the load state of the favorites list.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// State is the locally cached view of the caller's favorites.
type State struct {
	Items  []model.FavoriteView
	Status Status
}

// InitialState is the state before anything has been fetched.
func InitialState() State {
	return State{Items: []model.FavoriteView{}, Status: StatusIdle}
}

// Action is one event fed to Reduce.
type Action interface {
	action()
}

// FetchPending marks the start of a list request.
type FetchPending struct{}

// FetchFulfilled carries the server's full list.
type FetchFulfilled struct {
	Items []model.FavoriteView
}

// FetchRejected records a failed list request.
type FetchRejected struct {
	Err error
}

// AddFulfilled is dispatched once the server confirmed an add.
type AddFulfilled struct {
	View model.FavoriteView
}

// RemoveFulfilled is dispatched once the server confirmed a remove.
type RemoveFulfilled struct {
	BookID string
}

// CommentFulfilled is dispatched once the server confirmed a comment update.
type CommentFulfilled struct {
	BookID  string
	Comment string
}

func (FetchPending) action()     {}
func (FetchFulfilled) action()   {}
func (FetchRejected) action()    {}
func (AddFulfilled) action()     {}
func (RemoveFulfilled) action()  {}
func (CommentFulfilled) action() {}

// Reduce returns the state that follows s after a. It never modifies s or
// its Items; every change produces a new slice.
//
// Only the fetch actions move Status. Writes patch Items and leave
// Status alone, and a failed fetch keeps the items from the last success.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FetchPending:
		s.Status = StatusLoading

	case FetchFulfilled:
		s.Status = StatusSucceeded
		s.Items = slices.Clone(a.Items)
		if s.Items == nil {
			s.Items = []model.FavoriteView{}
		}

	case FetchRejected:
		s.Status = StatusFailed

	case AddFulfilled:
		// The server keeps the first comment when the book is already a
		// favorite, so an existing item is left as it is.
		if indexOf(s.Items, a.View.ID) == -1 {
			s.Items = append(slices.Clip(s.Items), a.View)
		}

	case RemoveFulfilled:
		if i := indexOf(s.Items, a.BookID); i != -1 {
			s.Items = slices.Delete(slices.Clone(s.Items), i, i+1)
		}

	case CommentFulfilled:
		if i := indexOf(s.Items, a.BookID); i != -1 {
			s.Items = slices.Clone(s.Items)
			s.Items[i].Comment = a.Comment
		}
	}
	return s
}

func indexOf(items []model.FavoriteView, bookID string) int {
	return slices.IndexFunc(items, func(v model.FavoriteView) bool {
		return v.ID == bookID
	})
}
