package common

const (
	// AccessTokenParamName is the query parameter that may carry a bearer
	// token (user token or master key) instead of the Authorization header.
	AccessTokenParamName = "access_token"

	// MeAlias is the path id that resolves to the caller's own user id.
	MeAlias = "me"
)
