package utils // package utils creates and reads the gateway's access tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
// The token only references a session; the platform token stays server
// side in the session store.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims are the values the gateway reads back from a verified token.
type Claims struct {
	OperatorID int64
	SessionID  string
	Role       string
}

// NewAccessToken builds and signs an HS256 JWT for an operator session.
// The JWT includes subject (sub), session id (sid), role, expiration (exp)
// and issued at (iat).
func NewAccessToken(secret string, c Claims, exp time.Time) (AccessToken, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprint(c.OperatorID),
		"sid":  c.SessionID,
		"role": c.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp.UTC()}, nil
}

// ParseAccessToken verifies raw with secret and returns its claims. Only
// HMAC signing methods are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mc.GetSubject()
	var id int64
	if _, err := fmt.Sscan(sub, &id); err != nil || id <= 0 {
		return Claims{}, errors.New("invalid subject")
	}
	sid, _ := mc["sid"].(string)
	role, _ := mc["role"].(string)
	if sid == "" {
		return Claims{}, errors.New("missing session")
	}
	return Claims{OperatorID: id, SessionID: sid, Role: role}, nil
}
