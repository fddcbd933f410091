package transport

import (
	"net/http"
	"strings"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {
	// No authentication applied
}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set(a.Header, apiKey)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, apiKey string) {
	if req.URL == nil {
		return
	}

	// Parse existing query parameters
	query := req.URL.Query()
	query.Set(a.Param, apiKey)
	req.URL.RawQuery = query.Encode()
}

// Scheme is the prefix put in front of the API key in a header.
type Scheme string

// Supported schemes.
const (
	SchemeDirect Scheme = ""
	SchemeBearer Scheme = "Bearer"
	SchemeBasic  Scheme = "Basic"
	SchemeToken  Scheme = "Token"
)

// ParseScheme maps a configured scheme name to a Scheme. Unknown names are
// treated as direct.
func ParseScheme(s string) Scheme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bearer":
		return SchemeBearer
	case "basic":
		return SchemeBasic
	case "token":
		return SchemeToken
	default:
		return SchemeDirect
	}
}

// SchemeAuth implements configurable authentication: either a query
// parameter, or a header carrying "<scheme> <key>".
type SchemeAuth struct {
	Header     string // Defaults to Authorization
	Scheme     Scheme
	QueryParam string // Takes precedence over the header when set
}

// Apply implements the Authenticator interface for SchemeAuth.
func (a *SchemeAuth) Apply(req *http.Request, apiKey string) {
	if a.QueryParam != "" {
		(&QueryAuth{Param: a.QueryParam}).Apply(req, apiKey)
		return
	}

	header := a.Header
	if header == "" {
		header = "Authorization"
	}

	value := apiKey
	if a.Scheme != SchemeDirect {
		value = string(a.Scheme) + " " + apiKey
	}
	req.Header.Set(header, value)
}
