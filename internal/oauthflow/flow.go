// Package oauthflow drives the redirect-based external sign-in: building the
// authorization URL, handing off to the system browser, and turning the
// delivered callback into an authenticated session. The in-flight bookkeeping
// lives in the recovery tracker so the flow survives process restarts.
package oauthflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shuttertrack/shuttertrack/internal/auth"
	"github.com/shuttertrack/shuttertrack/internal/config"
	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"github.com/shuttertrack/shuttertrack/internal/recovery"
	"github.com/shuttertrack/shuttertrack/internal/session"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// keySignInState holds the anti-forgery state nonce between hand-off and
// callback. Durable for the same reason the recovery flags are.
const keySignInState = "GoogleSignInState"

// ErrNoPendingCallback is returned by Complete when no delivered callback is
// waiting, including when a concurrent caller consumed it first.
var ErrNoPendingCallback = fmt.Errorf("no pending sign-in callback")

// Callback is the parsed redirect URI.
type Callback struct {
	State   string
	Code    string
	IDToken string
	Err     string
}

// Flow coordinates the tracker, the browser hand-off and the credential
// exchange.
type Flow struct {
	oauth    *oauth2.Config
	flags    flagstore.Store
	tracker  *recovery.Tracker
	auth     *auth.Session
	launcher *BrowserLauncher
	log      *zap.Logger
}

// NewFlow builds the redirect flow from the OAuth client settings.
func NewFlow(cfg *config.OAuthConfig, flags flagstore.Store, tracker *recovery.Tracker,
	authSession *auth.Session, launcher *BrowserLauncher, log *zap.Logger) *Flow {
	return &Flow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		flags:    flags,
		tracker:  tracker,
		auth:     authSession,
		launcher: launcher,
		log:      log,
	}
}

// Start marks the flow as in progress and opens the authorization URL in the
// external browser. The returned URL lets the caller display it as a fallback
// when the browser could not be opened.
func (f *Flow) Start(ctx context.Context) (string, error) {
	if f.oauth.ClientID == "" {
		return "", fmt.Errorf("oauth client id is not configured")
	}

	state := uuid.NewString()
	if err := f.flags.Set(keySignInState, state); err != nil {
		return "", fmt.Errorf("persisting sign-in state: %w", err)
	}
	if err := f.tracker.Begin(); err != nil {
		return "", fmt.Errorf("marking sign-in as started: %w", err)
	}

	authURL := f.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	f.launcher.SetURL(authURL)
	if err := f.launcher.Relaunch(ctx); err != nil {
		f.log.Warn("browser hand-off failed, URL must be opened manually", zap.Error(err))
	}
	return authURL, nil
}

// Deliver records an incoming redirect URI for later consumption.
func (f *Flow) Deliver(uri string) error {
	return f.tracker.Deliver(uri)
}

// Complete consumes the delivered callback, verifies the state nonce and
// exchanges the result for a stored credential. Safe to call speculatively;
// ErrNoPendingCallback means nothing was waiting.
func (f *Flow) Complete(ctx context.Context) (*session.Credential, error) {
	uri, ok := f.tracker.Consume()
	if !ok {
		return nil, ErrNoPendingCallback
	}

	callback, err := ParseCallback(uri)
	if err != nil {
		return nil, err
	}
	if callback.Err != "" {
		return nil, fmt.Errorf("external sign-in was rejected: %s", callback.Err)
	}

	expected, _ := f.flags.Get(keySignInState, "")
	if err := f.flags.Remove(keySignInState); err != nil {
		f.log.Warn("sign-in state flag clear failed", zap.Error(err))
	}
	// A missing nonce counts as a mismatch: the nonce is durable, so its
	// absence means this callback does not belong to a flow we started.
	if expected == "" || callback.State != expected {
		return nil, fmt.Errorf("sign-in state mismatch, callback discarded")
	}

	idToken := callback.IDToken
	if idToken == "" {
		if callback.Code == "" {
			return nil, fmt.Errorf("callback carries neither a code nor an identity token")
		}
		token, err := f.oauth.Exchange(ctx, callback.Code)
		if err != nil {
			return nil, fmt.Errorf("authorization code exchange failed: %w", err)
		}
		idToken, _ = token.Extra("id_token").(string)
		if idToken == "" {
			return nil, fmt.Errorf("token response carries no identity token")
		}
	}

	return f.auth.ExchangeExternalIdentity(ctx, idToken)
}

// Resume runs the tracker's recovery pass and, when a callback is (or becomes)
// available, completes it. Returns the outcome and, for a delivered callback,
// the resulting credential.
func (f *Flow) Resume(ctx context.Context) (recovery.ResumeOutcome, *session.Credential, error) {
	outcome, err := f.tracker.AttemptResume(ctx)
	if err != nil {
		return outcome, nil, err
	}
	if outcome != recovery.ResumeDelivered {
		return outcome, nil, nil
	}

	cred, err := f.Complete(ctx)
	if err != nil {
		return outcome, nil, err
	}
	return outcome, cred, nil
}

// ParseCallback splits a redirect URI into its sign-in parameters. Values may
// arrive in the query string or, for some response modes, in the fragment.
func ParseCallback(uri string) (*Callback, error) {
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, fmt.Errorf("malformed callback uri: %w", err)
	}

	values := parsed.Query()
	if fragment, err := url.ParseQuery(parsed.Fragment); err == nil {
		for key, fragmentValues := range fragment {
			if values.Get(key) == "" && len(fragmentValues) > 0 {
				values.Set(key, fragmentValues[0])
			}
		}
	}

	return &Callback{
		State:   values.Get("state"),
		Code:    values.Get("code"),
		IDToken: values.Get("id_token"),
		Err:     values.Get("error"),
	}, nil
}
