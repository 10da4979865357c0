package domain

import "context"

// IdentityProvider is the port interface for resolving the owner of an access token.
// The domain does not know about GitHub or any specific API.
type IdentityProvider interface {
	CurrentUser(ctx context.Context, accessToken string) (Identity, error)
}
