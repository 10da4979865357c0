package domain

// Identity is the account an access token belongs to, as reported by the provider.
type Identity struct {
	ID    int64
	Login string
	Name  string
}
