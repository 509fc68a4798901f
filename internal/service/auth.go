package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/session"
	"github.com/iliyamo/wellness-admin/internal/utils"
)

// ErrRoleNotAllowed is returned when the platform authenticates an account
// whose role may not use the admin gateway.
var ErrRoleNotAllowed = errors.New("role not allowed")

// AllowedRoles are the platform roles that may sign in.
var AllowedRoles = []string{"ADMIN", "MANAGER"}

// Authenticator checks operator credentials against the platform.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (platform.LoginResult, error)
}

// Auth opens and closes operator sessions.
type Auth struct {
	platform  Authenticator
	sessions  session.Store
	secret    string
	accessTTL time.Duration
	now       func() time.Time
}

func NewAuth(p Authenticator, s session.Store, secret string, accessTTL time.Duration) *Auth {
	return &Auth{platform: p, sessions: s, secret: secret, accessTTL: accessTTL, now: time.Now}
}

// LoginResult is returned to the operator after a successful login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Operator    model.Operator `json:"operator"`
}

// Login authenticates upstream, stores the platform token in a new session
// and issues the gateway token. The session never outlives the platform
// token.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	res, err := a.platform.Login(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	if !roleAllowed(res.Operator.Role) {
		return LoginResult{}, ErrRoleNotAllowed
	}
	exp := a.now().Add(a.accessTTL)
	if pexp, ok := platform.TokenExpiry(res.Token); ok && pexp.Before(exp) {
		exp = pexp
	}
	sess := model.Session{
		ID:            session.NewID(),
		Operator:      res.Operator,
		PlatformToken: res.Token,
		ExpiresAt:     exp,
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		return LoginResult{}, err
	}
	at, err := utils.NewAccessToken(a.secret, utils.Claims{
		OperatorID: res.Operator.ID,
		SessionID:  sess.ID,
		Role:       res.Operator.Role,
	}, exp)
	if err != nil {
		_ = a.sessions.Delete(ctx, sess.ID)
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: at.Token, ExpiresAt: at.Exp, Operator: res.Operator}, nil
}

// Logout deletes the session; the access token becomes useless at once.
func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	return a.sessions.Delete(ctx, sessionID)
}

func roleAllowed(role string) bool {
	for _, r := range AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
