package models

import "time"

// Account is an authenticated identity against one server endpoint.
// Name is unique ("user@host") and owns one RemoteFile tree rooted at "/".
type Account struct {
	Name      string
	ServerURL string
	Username  string
	// Token is the bearer token presented to the server. An empty token
	// means the credentials have been invalidated and the account needs to
	// go through the login flow again.
	Token     string
	CreatedAt time.Time
}

// HasCredentials reports whether the account currently holds a usable token.
func (a *Account) HasCredentials() bool {
	return a != nil && a.Token != ""
}
