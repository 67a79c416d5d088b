package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// ConfigFromEnv reads auth config from env vars. Tokens default to 30 days,
// matching the mobile clients' session length.
func ConfigFromEnv() Config {
	ttl := 30 * 24 * time.Hour
	if v := os.Getenv("AUTH_TOKEN_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Hour
		}
	}
	issuer := os.Getenv("AUTH_ISSUER")
	if issuer == "" {
		issuer = "sautihub"
	}
	return Config{Secret: os.Getenv("AUTH_JWT_SECRET"), Issuer: issuer, TokenTTL: ttl}
}

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID    int64
	Username  string
	IsCreator bool
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: AUTH_JWT_SECRET not configured")
	}
	return &TokenService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TokenTTL}, nil
}

// Issue creates a signed access token for the identity.
func (s *TokenService) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":        s.issuer,
		"sub":        fmt.Sprintf("%d", id.UserID),
		"username":   id.Username,
		"is_creator": id.IsCreator,
		"iat":        now.Unix(),
		"exp":        now.Add(s.ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Verify parses and validates a token string and returns the caller identity.
func (s *TokenService) Verify(tokenString string) (*Identity, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	uid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	username, _ := claims["username"].(string)
	isCreator, _ := claims["is_creator"].(bool)
	return &Identity{UserID: uid, Username: username, IsCreator: isCreator}, nil
}
