package model

import "time"

// Operator is a studio administrator authenticated against the platform.
// The gateway keeps no password; credentials are checked upstream.
//
// Fields:
//
//	ID    – platform account identifier.
//	Email – login email as returned by the platform.
//	Name  – display name.
//	Role  – ADMIN or MANAGER.
type Operator struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session binds an operator to the platform token obtained at login. Only
// the session id travels in the gateway's own access token.
type Session struct {
	ID            string    `json:"id"`
	Operator      Operator  `json:"operator"`
	PlatformToken string    `json:"platform_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}
