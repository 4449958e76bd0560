// Package auth turns bearer tokens into order actors.
//
// Tokens are HS256 JWTs whose subject is the actor id, with role and name
// claims. They are issued by the identity service; Issue exists for tools
// and tests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

var (
	ErrMissingToken = errors.New("authentication token is required")
	ErrInvalidToken = errors.New("authentication token is invalid")
)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string, now func() time.Time) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errs.NewValueIsRequiredError("jwt secret")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), now: now}, nil
}

// Verify parses raw and returns the actor it names. Expiry is required.
func (v *Verifier) Verify(raw string) (order.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return order.Actor{}, ErrMissingToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return order.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id, err := kernel.UUIDFromString(c.Subject)
	if err != nil {
		return order.Actor{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	role, err := order.ParseRole(c.Role)
	if err != nil {
		return order.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	actor, err := order.NewActor(role, id, c.Name)
	if err != nil {
		return order.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return actor, nil
}

// Issue signs a token for actor valid for ttl.
func (v *Verifier) Issue(actor order.Actor, ttl time.Duration) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: actor.Role().String(),
		Name: actor.Name(),
	})
	return token.SignedString(v.secret)
}

// TokenFromRequest reads the token from the token query parameter, which
// browsers need for WebSocket handshakes, or from a bearer Authorization
// header.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get(headerAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

const headerAuthorization = "Authorization"
