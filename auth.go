package stowgate

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultAuthCookie is the cookie consulted by SecretAuthorizer when no other
// name is configured.
const DefaultAuthCookie = "auth"

// HeaderAuthSecret carries the shared secret for clients that cannot set an
// Authorization header.
const HeaderAuthSecret = "X-Auth-Secret"

// Authorizer decides whether a request is allowed to perform mutations and
// read private objects. Implementations must be safe for concurrent use.
type Authorizer interface {
	Authorize(r *http.Request) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) bool

func (f AuthorizerFunc) Authorize(r *http.Request) bool {
	return f(r)
}

// SecretStore retrieves secret keys by access key.
type SecretStore interface {
	Lookup(accessKey string) (secretKey string, err error)
}

// SecretAuthorizer accepts requests presenting the shared secret as
// "Authorization: Bearer <secret>", as the X-Auth-Secret header, or as the
// value of the auth cookie.
//
// An empty secret authorizes nobody.
type SecretAuthorizer struct {
	secret []byte
	cookie string
}

func NewSecretAuthorizer(secret, cookieName string) *SecretAuthorizer {
	if cookieName == "" {
		cookieName = DefaultAuthCookie
	}
	return &SecretAuthorizer{secret: []byte(secret), cookie: cookieName}
}

func (a *SecretAuthorizer) Authorize(r *http.Request) bool {
	if len(a.secret) == 0 {
		return false
	}

	for _, candidate := range a.candidates(r) {
		if subtle.ConstantTimeCompare([]byte(candidate), a.secret) == 1 {
			return true
		}
	}
	return false
}

func (a *SecretAuthorizer) candidates(r *http.Request) []string {
	var out []string

	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			out = append(out, strings.TrimSpace(token))
		}
	}

	if h := r.Header.Get(HeaderAuthSecret); h != "" {
		out = append(out, h)
	}

	if c, err := r.Cookie(a.cookie); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}

	return out
}

// PresignAuthorizer accepts requests carrying a valid presigned query string
// for their exact method and path.
type PresignAuthorizer struct {
	verifier *PresignVerifier
}

func NewPresignAuthorizer(verifier *PresignVerifier) *PresignAuthorizer {
	return &PresignAuthorizer{verifier: verifier}
}

func (a *PresignAuthorizer) Authorize(r *http.Request) bool {
	if !HasPresignParams(r.URL.Query()) {
		return false
	}
	if err := a.verifier.VerifyRequest(r); err != nil {
		slog.DebugContext(r.Context(), "presigned request rejected", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

// AnyAuthorizer authorizes a request if any of its members does.
type AnyAuthorizer []Authorizer

func (a AnyAuthorizer) Authorize(r *http.Request) bool {
	for _, auth := range a {
		if auth != nil && auth.Authorize(r) {
			return true
		}
	}
	return false
}
