package reservation

import "errors"

var (
	// ErrCategoryNotFound: the requested appointment category is not offered right now.
	ErrCategoryNotFound = errors.New("appointment category not found")
	// ErrCommitFailed: the site rejected or failed the booking action.
	ErrCommitFailed = errors.New("commit failed")
	// ErrPersistenceFailed: the site booking happened but the ledger append did not.
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrScreenshotFailed  = errors.New("screenshot failed")
	ErrMalformedRecord   = errors.New("malformed reservation record")
	ErrUnencodable       = errors.New("record field cannot be encoded")
	ErrInvalidDate       = errors.New("invalid slot date")
)
