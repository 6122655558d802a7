package auth

const (
	ScopeOpenID   = "openid"
	ScopeProfile  = "profile"
	ScopeEmail    = "email"
	ScopeMRVRead  = "mrv:read"
	ScopeMRVWrite = "mrv:write"
)

// AllScopes defines the full set of scopes requested during login
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeMRVRead,
	ScopeMRVWrite,
}
