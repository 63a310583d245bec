package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RemoteIdentity is what the managed auth provider asserts about its user.
type RemoteIdentity struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type remoteClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// RemoteVerifier validates tokens minted by the managed auth provider.
type RemoteVerifier struct {
	issuer string
	secret []byte
	now    func() time.Time
}

func NewRemoteVerifier(issuer, secret string) (*RemoteVerifier, error) {
	issuer = strings.TrimSpace(issuer)
	secret = strings.TrimSpace(secret)
	if issuer == "" || secret == "" {
		return nil, errors.New("remote auth issuer and secret are required")
	}

	return &RemoteVerifier{issuer: issuer, secret: []byte(secret), now: time.Now}, nil
}

func (v *RemoteVerifier) Verify(token string) (*RemoteIdentity, error) {
	claims := &remoteClaims{}
	_, err := jwt.ParseWithClaims(token, claims, hmacKey(v.secret),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	rid := &RemoteIdentity{
		Subject:   claims.Subject,
		Email:     strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:      strings.TrimSpace(claims.Name),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		rid.IssuedAt = claims.IssuedAt.Time
	}
	return rid, nil
}

// SignRemote mints a provider token. Used by tests and local development.
func SignRemote(issuer, secret, subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &remoteClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
