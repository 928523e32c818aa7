package reservation

import "context"

// Driver opens sessions against the booking site.
type Driver interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// Session is one live interaction with the booking site. The session owns the
// mapping from (date, time) to whatever the site needs to book it; slots
// handed to callers carry no site references.
type Session interface {
	// FetchSlots returns the advertised slots for a category, or ErrCategoryNotFound.
	FetchSlots(ctx context.Context, category string) ([]Slot, error)
	// Commit books picks for the person. It returns the picks the site
	// confirmed, which may be a prefix of picks when err != nil.
	Commit(ctx context.Context, p Person, picks []Pick) ([]Pick, error)
	// Screenshot stores a best-effort confirmation artifact under label.
	Screenshot(ctx context.Context, label string) error
	Close() error
}
