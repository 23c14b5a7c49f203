package membership

import "errors"

var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrDuplicate         = errors.New("email is already registered")
	ErrEmailRequired     = errors.New("email is required")
	ErrTarotExhausted    = errors.New("free tarot uses are exhausted")
	ErrInvalidKey        = errors.New("invalid key")
	ErrDailyQuota        = errors.New("daily post limit reached, try again tomorrow")
	ErrOffline           = errors.New("directory is offline, unavailable")
	ErrNotPending        = errors.New("point request is not pending")
	ErrRequestNotFound   = errors.New("point request not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrForbidden         = errors.New("wrong staff passphrase")
	ErrNoSession         = errors.New("no active session")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrCacheMiss         = errors.New("not found in cache")
	ErrFieldRequired     = errors.New("required field is empty")
	ErrRecipeNotFound    = errors.New("recipe not found")
)
