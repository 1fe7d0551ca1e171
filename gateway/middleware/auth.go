package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"fall/crypto"
)

type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	ScopeClaim string
	ClockSkew  time.Duration
}

type contextKey string

const (
	ContextKeySubject contextKey = "gateway.subject"
	ContextKeyScopes  contextKey = "gateway.scopes"
)

// ScopeAdmin guards exchange registration and the faucet.
const ScopeAdmin = "admin"

var (
	errSecretMissing = errors.New("auth secret not configured")
	errSubject       = errors.New("sub claim is not a fall address")
)

// Authenticator validates HS256 bearer tokens. The token's sub claim names
// the address the caller acts as.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, logger: logger, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool { return a != nil && a.cfg.Enabled }

func (a *Authenticator) Middleware(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := extractBearer(r.Header.Get("Authorization"))
			if tokenString == "" {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := a.parseToken(tokenString)
			if err == nil {
				err = validateClaims(claims, a.cfg.Issuer, a.cfg.Audience)
			}
			var subject crypto.Address
			if err == nil {
				subject, err = subjectAddress(claims)
			}
			if err != nil {
				a.logger.Warn("token rejected", "path", r.URL.Path, "error", err)
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			scopes := extractScopes(claims, a.cfg.ScopeClaim)
			if !hasScopes(scopes, requiredScopes) {
				writeProblem(w, http.StatusForbidden, "forbidden", "insufficient scope")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyScopes, scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated address, if the request carried a token.
func Subject(ctx context.Context) (crypto.Address, bool) {
	addr, ok := ctx.Value(ContextKeySubject).(crypto.Address)
	return addr, ok
}

// IssueToken signs an HS256 token for subject with the given scopes. A zero
// ttl issues a token without expiry.
func IssueToken(secret []byte, subject crypto.Address, issuer, audience string, scopes []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errSecretMissing
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject.String(),
		"iat":   now.Unix(),
		"scope": strings.Join(scopes, " "),
	}
	if ttl != 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errSecretMissing
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func subjectAddress(claims jwt.MapClaims) (crypto.Address, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return crypto.Address{}, errSubject
	}
	addr, err := crypto.DecodeAddress(sub)
	if err != nil || addr.Prefix() != crypto.FallPrefix {
		return crypto.Address{}, errSubject
	}
	return addr, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			matched := false
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					matched = true
					break
				}
			}
			if !matched {
				return errors.New("audience mismatch")
			}
		default:
			return errors.New("audience missing")
		}
	}
	return nil
}

func extractScopes(claims jwt.MapClaims, scopeClaim string) []string {
	switch v := claims[scopeClaim].(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasScopes(scopes []string, required []string) bool {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		set[scope] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
