package identity

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Settings struct {
	Secret        string
	Issuer        string
	Audience      string
	TTL           time.Duration
	AdminEmail    string
	AdminPassword string
}

type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HMAC tokens for the back office.
type Authenticator struct {
	cfg Settings
	now func() time.Time
}

func NewAuthenticator(cfg Settings) *Authenticator {
	return &Authenticator{cfg: cfg, now: time.Now}
}

// IssueToken checks the configured admin credentials and returns a signed
// admin token.
func (a *Authenticator) IssueToken(email, password string) (*Token, error) {
	if a.cfg.AdminEmail == "" || a.cfg.AdminPassword == "" {
		return nil, ErrInvalidCredentials
	}
	emailOK := strings.EqualFold(strings.TrimSpace(email), a.cfg.AdminEmail)
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.AdminPassword)) == 1
	if !emailOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	c := claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Subject:   strings.ToLower(a.cfg.AdminEmail),
			Audience:  jwt.ClaimStrings{a.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresIn: a.cfg.TTL}, nil
}

// Verify parses a raw token and returns the actor it names.
func (a *Authenticator) Verify(raw string) (Actor, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.cfg.Secret), nil
	},
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithAudience(a.cfg.Audience),
		jwt.WithLeeway(30*time.Second), // small clock skew
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return Guest, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Role != RoleAdmin {
		return Guest, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}

	return Actor{Role: c.Role, UID: c.Subject}, nil
}
