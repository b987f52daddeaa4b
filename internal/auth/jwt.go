package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "typ" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("wrong token kind")
)

// Signer issues and validates HS256 session tokens.
type Signer struct {
	Key        []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewSigner creates a signer.
func NewSigner(key, issuer string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Key: []byte(key), Issuer: issuer, AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
	RefreshID    string    `json:"-"`
}

// Claims represents JWT payload.
type Claims struct {
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Provider string `json:"provider"`
	Kind     string `json:"typ"`
	jwt.RegisteredClaims
}

// Issue signs an access and a refresh token for the session.
func (s *Signer) Issue(ac AuthContext) (TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, _, err := s.sign(ac, KindAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshID, err := s.sign(ac, KindRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		RefreshID:    refreshID,
	}, nil
}

func (s *Signer) sign(ac AuthContext, kind string, now, exp time.Time) (string, string, error) {
	id := uuid.NewString()
	claims := Claims{
		Name:     ac.FullName,
		Role:     ac.Role,
		Provider: ac.Provider,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    s.Issuer,
			Subject:   ac.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
	return signed, id, err
}

// Parse validates a token of the given kind and returns its session.
func (s *Signer) Parse(tokenStr, kind string) (AuthContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.Key, nil
	}, opts...)
	if err != nil {
		return AuthContext{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return AuthContext{}, ErrInvalidToken
	}
	if claims.Kind != kind {
		return AuthContext{}, ErrWrongKind
	}
	return AuthContext{
		UserID:    claims.Subject,
		FullName:  claims.Name,
		Role:      claims.Role,
		Provider:  claims.Provider,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
