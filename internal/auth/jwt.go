package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// Identity is who a token speaks for.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Role        string
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	Refresh bool   `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// Identity extracts the caller from validated claims.
func (c Claims) Identity() Identity {
	return Identity{UID: c.Subject, Email: c.Email, DisplayName: c.Name, Role: c.Role}
}

// ValidRole reports whether role is one the service understands.
func ValidRole(role string) bool {
	return role == RoleInstructor || role == RoleStudent
}

// Issue issues signed access and refresh tokens for id.
func Issue(id Identity, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	if id.UID == "" || !ValidRole(id.Role) {
		return TokenPair{}, errors.New("uid and a valid role required")
	}
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessToken, err := sign(id, issuer, key, now, accessExp, false)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(id, issuer, key, now, refreshExp, true)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// ErrNotRefresh is returned when an access token is presented for refresh.
var ErrNotRefresh = errors.New("not a refresh token")

// Refresh exchanges a valid refresh token for a new token pair.
func Refresh(refreshToken, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	claims, err := Parse(refreshToken, key, issuer)
	if err != nil {
		return TokenPair{}, err
	}
	if !claims.Refresh {
		return TokenPair{}, ErrNotRefresh
	}
	return Issue(claims.Identity(), issuer, key, accessTTL, refreshTTL)
}

func sign(id Identity, issuer, key string, issued, exp time.Time, refresh bool) (string, error) {
	claims := Claims{
		Email:   id.Email,
		Name:    id.DisplayName,
		Role:    id.Role,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
