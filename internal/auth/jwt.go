// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/24f2002329/caniedit/internal/config"
	"github.com/24f2002329/caniedit/internal/models"
)

const defaultLeeway = 30 * time.Second

var (
	ErrNotConfigured = errors.New("auth: no JWT secret or JWKS URL configured")
	ErrMissingSub    = errors.New("auth: token missing sub")
)

// Verifier validates HS256 tokens with a shared secret and asymmetric
// tokens against a JWKS key cache.
type Verifier struct {
	secret  []byte
	keys    *KeyCache
	parser  *jwt.Parser
	timeout time.Duration
}

func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, ErrNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Name,
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodES256.Name,
		}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	v := &Verifier{
		parser:  jwt.NewParser(opts...),
		timeout: cfg.Timeout,
	}
	if v.timeout <= 0 {
		v.timeout = defaultFetchTimeout
	}
	if cfg.JWTSecret != "" {
		v.secret = []byte(cfg.JWTSecret)
	}
	if cfg.JWKSURL != "" {
		v.keys = NewKeyCache(cfg.JWKSURL, cfg.JWKSTTL, v.timeout)
	}
	return v, nil
}

// Verify checks the token and returns the identity it carries. A token
// signed by an unknown key triggers one early key refresh.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	token, err := v.parse(ctx, tokenString)
	if err != nil && v.keys != nil && errors.Is(err, jwt.ErrTokenUnverifiable) {
		if refreshed, rerr := v.keys.Refresh(ctx); refreshed && rerr == nil {
			token, err = v.parse(ctx, tokenString)
		}
	}
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token")
	}

	id := &models.Identity{
		Subject:  readString(claims, "sub"),
		Email:    readString(claims, "email"),
		FullName: readName(claims),
	}
	if id.Subject == "" {
		return nil, ErrMissingSub
	}
	return id, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString string) (*jwt.Token, error) {
	return v.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 1. Symmetric tokens need the shared secret.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if v.secret == nil {
				return nil, errors.New("auth: HS256 tokens are not accepted")
			}
			return v.secret, nil
		}

		// 2. Everything else is looked up by kid in the JWKS.
		if v.keys == nil {
			return nil, fmt.Errorf("auth: %s tokens are not accepted", token.Method.Alg())
		}
		keys, err := v.keys.Keyfunc(ctx)
		if err != nil {
			return nil, err
		}
		return keys.Keyfunc(token)
	})
}

// GenerateToken signs an HS256 token for id with the configured secret,
// issuer and audience. It is used to mint local development tokens.
func GenerateToken(cfg config.AuthConfig, id models.Identity, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", ErrNotConfigured
	}
	if id.Subject == "" {
		return "", ErrMissingSub
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   id.Subject,
		"email": id.Email,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	if id.FullName != "" {
		claims["user_metadata"] = map[string]interface{}{"full_name": id.FullName}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// readName prefers user_metadata.full_name, then user_metadata.name, then
// a top-level name claim.
func readName(claims jwt.MapClaims) string {
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		for _, key := range []string{"full_name", "name"} {
			if s, ok := meta[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return readString(claims, "name")
}
