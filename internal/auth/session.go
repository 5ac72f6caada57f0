// Package auth owns the authentication session lifecycle: acquiring,
// validating, refreshing and discarding the one identity this process tracks.
// It is the only place that performs network calls mutating identity state.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/auth/provider"
	"github.com/shuttertrack/shuttertrack/internal/session"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// Session is the state machine over the current identity:
// Anonymous -> Authenticated (sign-in/up/federation), Authenticated ->
// Anonymous (sign-out, or irrecoverable refresh failure inside CheckState),
// and the refresh self-loop.
type Session struct {
	client *provider.Client
	store  *session.Store
	log    *zap.Logger

	// background runs best-effort side work. Swapped in tests.
	background func(f func())
}

// NewSession builds an auth session around the provider client and the
// credential store.
func NewSession(client *provider.Client, store *session.Store, log *zap.Logger) *Session {
	s := &Session{
		client: client,
		store:  store,
		log:    log,
	}
	s.background = func(f func()) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("background auth task panicked", zap.Any("panic", r))
				}
			}()
			f()
		}()
	}
	return s
}

// SignUp creates a new password account, persists the resulting credential,
// and kicks off best-effort profile and verification-email dispatch.
func (s *Session) SignUp(ctx context.Context, email, password, displayName string) (*session.Credential, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, invalidInput("password must be at least %d characters", minPasswordLength)
	}

	tokens, err := s.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	cred := credentialFromTokens(tokens)
	cred.DisplayName = strings.TrimSpace(displayName)
	if err := s.store.Persist(*cred); err != nil {
		return nil, err
	}

	// Profile write and verification mail are side work; their failure must
	// not fail the sign-up.
	idToken := cred.IDToken
	name := cred.DisplayName
	s.background(func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if name != "" {
			if err := s.client.UpdateProfile(bgCtx, idToken, name); err != nil {
				s.log.Warn("profile update failed", zap.Error(err))
			}
		}
		if err := s.client.SendEmailVerification(bgCtx, idToken); err != nil {
			s.log.Warn("verification email dispatch failed", zap.Error(err))
		}
	})

	return cred, nil
}

// SignIn authenticates with email+password and persists the credential.
func (s *Session) SignIn(ctx context.Context, email, password string) (*session.Credential, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalidInput("password is required")
	}

	tokens, err := s.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	cred := credentialFromTokens(tokens)
	if err := s.store.Persist(*cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// ExchangeExternalIdentity trades a third-party identity token for this
// system's own credential. Used for direct social sign-in and to complete a
// recovered redirect callback.
func (s *Session) ExchangeExternalIdentity(ctx context.Context, externalIDToken string) (*session.Credential, error) {
	if externalIDToken == "" {
		return nil, invalidInput("external identity token is required")
	}

	tokens, err := s.client.SignInWithIdp(ctx, externalIDToken, "")
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	cred := credentialFromTokens(tokens)
	if err := s.store.Persist(*cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// IsAuthenticated is the cheap local-only check: a stored credential with a
// non-empty id token. It does not consult the provider.
func (s *Session) IsAuthenticated() bool {
	cred, err := s.store.Load()
	if err != nil {
		s.log.Warn("session load failed", zap.Error(err))
		return false
	}
	return cred.IsAuthenticated()
}

// CheckState is the authoritative check. It validates the stored token
// against the provider, falls back to a refresh when the provider rejects it,
// and clears the session when the refresh fails too. Provider unreachability
// degrades to trusting local state. Never returns an error.
func (s *Session) CheckState(ctx context.Context) (bool, *session.Credential) {
	cred, err := s.store.Load()
	if err != nil {
		s.log.Warn("session load failed", zap.Error(err))
		return false, nil
	}
	if !cred.IsAuthenticated() {
		return false, nil
	}

	if _, lookupErr := s.client.Lookup(ctx, cred.IDToken); lookupErr == nil {
		return true, cred
	} else {
		tagged := wrapProviderErr(lookupErr)
		if tagged.Kind == KindNetwork {
			// Offline: local state stays authoritative.
			s.log.Debug("provider unreachable, trusting local session", zap.Error(lookupErr))
			return true, cred
		}
		s.log.Info("stored token rejected, attempting refresh", zap.String("code", tagged.Code))
	}

	if refreshed := s.Refresh(ctx, cred.RefreshToken); refreshed != nil {
		return true, refreshed
	}

	if err := s.store.Clear(); err != nil {
		s.log.Warn("session clear failed", zap.Error(err))
	}
	return false, nil
}

// Refresh exchanges the refresh token and persists the new credential,
// preserving profile fields the refresh response does not carry. Returns nil
// on any failure, without error.
func (s *Session) Refresh(ctx context.Context, refreshToken string) *session.Credential {
	if refreshToken == "" {
		return nil
	}

	tokens, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		s.log.Warn("token refresh failed", zap.Error(err))
		return nil
	}

	cred := credentialFromTokens(tokens)
	if previous, loadErr := s.store.Load(); loadErr == nil && previous != nil {
		cred.Email = previous.Email
		cred.DisplayName = previous.DisplayName
	}
	if err := s.store.Persist(*cred); err != nil {
		s.log.Warn("refreshed credential persist failed", zap.Error(err))
		return nil
	}
	return cred
}

// SignOut clears the stored credential. Idempotent.
func (s *Session) SignOut() error {
	return s.store.Clear()
}

// RequestPasswordReset asks the provider to mail a reset link.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.client.SendPasswordReset(ctx, email); err != nil {
		return wrapProviderErr(err)
	}
	return nil
}

func credentialFromTokens(tokens *provider.Tokens) *session.Credential {
	return &session.Credential{
		LocalID:      tokens.LocalID,
		Email:        tokens.Email,
		DisplayName:  tokens.DisplayName,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
	}
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalidInput("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return invalidInput("email address is malformed")
	}
	return nil
}
