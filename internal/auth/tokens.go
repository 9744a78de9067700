package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odinbook/backend/internal/config"
	"github.com/odinbook/backend/internal/models"
)

// Claims is the token payload: the caller's projection under "info" plus the
// standard issued-at and expiry claims.
type Claims struct {
	Info models.UserProjection `json:"info"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies stateless HS256 session tokens. Nothing is
// persisted, so a token stays valid until it expires.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	NowFunc func() time.Time
}

// NewIssuer builds an Issuer from the signing secret and TTL in cfg.
func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", cfg.TokenTTL)
	}
	return &Issuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, NowFunc: time.Now}, nil
}

func (i *Issuer) now() time.Time {
	if i.NowFunc != nil {
		return i.NowFunc()
	}
	return time.Now()
}

// TTL reports how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token carrying the projection of user.
func (i *Issuer) Issue(user models.User) (string, error) {
	now := i.now()
	info := user.Project()
	info.Score = 0

	claims := Claims{
		Info: info,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its payload.
func (i *Issuer) Verify(token string) (models.UserProjection, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.UserProjection{}, ErrTokenMissing
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.UserProjection{}, ErrTokenExpired
		}
		return models.UserProjection{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Info.ID == "" {
		return models.UserProjection{}, fmt.Errorf("%w: missing identity", ErrTokenInvalid)
	}
	return claims.Info, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrTokenMissing
	}
	return strings.TrimSpace(token), nil
}
