// Package login obtains session tokens from the account backend and builds
// the per-bot device identity sent in login lines.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Method is the account provider a bot logs in with.
type Method string

const (
	MethodLegacy  Method = "legacy"
	MethodGoogle  Method = "google"
	MethodApple   Method = "apple"
	MethodUbisoft Method = "ubisoft"
	MethodToken   Method = "token"
)

// ParseMethod accepts a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodLegacy, MethodGoogle, MethodApple, MethodUbisoft, MethodToken:
		return m, nil
	default:
		return "", fmt.Errorf("unknown login method %q", s)
	}
}

// Credentials identify one account.
type Credentials struct {
	Method   Method
	Username string
	Password string
	Token    string // pre-issued session token, used by MethodToken
}

// ErrNoToken is returned when an account has no usable token.
var ErrNoToken = errors.New("no session token")

// ErrUnsupportedMethod is returned for providers without an Authenticator.
var ErrUnsupportedMethod = errors.New("unsupported login method")

// AuthError reports a rejected login. It is fatal to session startup.
type AuthError struct {
	Method Method
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s login failed: %v", e.Method, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
}

// StaticAuthenticator returns the token carried in the credentials. It
// serves accounts whose token was obtained out of band.
type StaticAuthenticator struct{}

// Authenticate implements Authenticator.
func (StaticAuthenticator) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return "", &AuthError{Method: creds.Method, Err: ErrNoToken}
	}
	return token, nil
}

// Router dispatches to an Authenticator per method.
type Router struct {
	byMethod map[Method]Authenticator
}

// NewRouter creates a Router. MethodToken is always served by StaticAuthenticator.
func NewRouter() *Router {
	return &Router{byMethod: map[Method]Authenticator{
		MethodToken: StaticAuthenticator{},
	}}
}

// Register sets the Authenticator for a method.
func (r *Router) Register(m Method, a Authenticator) {
	r.byMethod[m] = a
}

// Supports reports whether an Authenticator is registered for m.
func (r *Router) Supports(m Method) bool {
	_, ok := r.byMethod[m]
	return ok
}

// Authenticate implements Authenticator.
func (r *Router) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	a, ok := r.byMethod[creds.Method]
	if !ok {
		return "", &AuthError{Method: creds.Method, Err: ErrUnsupportedMethod}
	}
	token, err := a.Authenticate(ctx, creds)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", &AuthError{Method: creds.Method, Err: err}
	}
	return token, nil
}
