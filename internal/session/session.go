package session

import "github.com/google/uuid"

// AnonymousUser is the identity of a visitor who never redeemed a login code.
const AnonymousUser = "anonymous"

// Context carries the identity of one browser session through a request. It
// is built once per request by the session middleware and passed explicitly,
// never looked up from ambient state.
type Context struct {
	// Token groups one conversation instance. Minted on the first request of
	// a browser session and stable until the session cookie is discarded.
	Token string
	// UserID is the durable participant identity from a redeemed login code,
	// or AnonymousUser.
	UserID string
}

func (c Context) Authenticated() bool {
	return c.UserID != "" && c.UserID != AnonymousUser
}

// NewToken mints a 128-bit session token.
func NewToken() string {
	return uuid.NewString()
}
