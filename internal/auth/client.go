// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package auth

import (
	"context"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the backend's response to login/register/verify-otp: the token
// pair plus whatever profile fields the backend includes.
type Session struct {
	Tokens
	User map[string]interface{} `json:"user,omitempty"`
}

// Login authenticates and persists the issued token pair.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var session Session
	if err := m.post(ctx, "/auth/login", creds, &session, false); err != nil {
		return nil, err
	}

	m.SetTokens(session.Tokens)
	logging.Info().Msg("logged in")
	return &session, nil
}

// Register creates an account. When the backend auto-logs-in (returns a
// token pair) the tokens are persisted.
func (m *Manager) Register(ctx context.Context, reg Registration) (*Session, error) {
	var session Session
	if err := m.post(ctx, "/auth/register", reg, &session, false); err != nil {
		return nil, err
	}

	if session.AccessToken != "" && session.RefreshToken != "" {
		m.SetTokens(session.Tokens)
	}
	return &session, nil
}

// Logout revokes the refresh token (best-effort) and clears the session.
// The local session is cleared even when the revoke call fails.
func (m *Manager) Logout(ctx context.Context) {
	if refreshToken := m.RefreshToken(); refreshToken != "" {
		err := m.post(ctx, "/auth/logout", map[string]string{"refreshToken": refreshToken}, nil, false)
		if err != nil {
			logging.Warn().Err(err).Msg("logout request failed")
		}
	}
	m.ClearTokens()
}

// ForgotPassword requests a password-reset email.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil, false)
}

// ResetPassword completes a password reset with the emailed token.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "newPassword": newPassword}
	return m.post(ctx, "/auth/reset-password", body, nil, false)
}

// VerifyOTP confirms a one-time passcode. A token pair in the response is
// persisted (OTP confirmation can complete a login).
func (m *Manager) VerifyOTP(ctx context.Context, email, otp string) (*Session, error) {
	var session Session
	body := map[string]string{"email": email, "otp": otp}
	if err := m.post(ctx, "/auth/verify-otp", body, &session, false); err != nil {
		return nil, err
	}

	if session.AccessToken != "" && session.RefreshToken != "" {
		m.SetTokens(session.Tokens)
	}
	return &session, nil
}

// ChangePassword changes the password of the logged-in account.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return m.post(ctx, "/auth/change-password", body, nil, true)
}
