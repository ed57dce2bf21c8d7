package authz

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mailpoint.org/internal/address"
)

const (
	issuer            = "mailpoint"
	secretEnvVariable = "MAILPOINT_STAFF_SECRET"
)

var (
	errMissingSecret = errors.New("staff token secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the staff token failed validation.
var ErrInvalidToken = errors.New("invalid staff token")

// Claims carries an AuthorityProfile inside a signed staff token. The
// authentication collaborator mints these; this core only verifies the
// signature and trusts the profile as given.
type Claims struct {
	Level             int    `json:"level"`
	AssignedPrefix    string `json:"prefix,omitempty"`
	Status            string `json:"status"`
	NamespaceOverride bool   `json:"namespace_override,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a staff token for the given profile using HS256.
func GenerateToken(p AuthorityProfile, ttl time.Duration) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		Level:             int(p.Level),
		AssignedPrefix:    string(p.AssignedPrefix),
		Status:            string(p.Status),
		NamespaceOverride: p.NamespaceOverride,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.ActorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the token and reconstructs the AuthorityProfile.
func ParseToken(token string) (AuthorityProfile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthorityProfile{}, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return AuthorityProfile{}, err
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretBytes, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return AuthorityProfile{}, ErrInvalidToken
	}

	var prefix address.Prefix
	if claims.AssignedPrefix != "" {
		prefix, err = address.ParsePrefix(claims.AssignedPrefix)
		if err != nil {
			return AuthorityProfile{}, ErrInvalidToken
		}
	}
	profile := AuthorityProfile{
		ActorID:           claims.Subject,
		Level:             Level(claims.Level),
		AssignedPrefix:    prefix,
		Status:            Status(claims.Status),
		NamespaceOverride: claims.NamespaceOverride,
	}
	if err := profile.Validate(); err != nil {
		return AuthorityProfile{}, ErrInvalidToken
	}
	return profile, nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret = cachedSecret{err: errMissingSecret, ready: true}
	} else {
		secret = cachedSecret{value: []byte(raw), ready: true}
	}
	return secret.value, secret.err
}

// ResetSecretForTests clears the cached signing secret so tests can swap the
// environment variable.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
