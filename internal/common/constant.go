package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token on
// outbound requests to the sync server.
const AuthorizationHeaderName = "Authorization"

// ETagHeaderName carries the cached folder ETag on listing requests so the
// server can answer 304 Not Modified.
const ETagHeaderName = "If-None-Match"

// Metadata keys stored in the client database.
const (
	MetaCurrentAccount = "current_account"
	MetaPasscodeHash   = "passcode_hash"
	MetaPasscodeSalt   = "passcode_salt"
)
