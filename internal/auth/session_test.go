package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/auth/provider"
	"github.com/shuttertrack/shuttertrack/internal/config"
	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"github.com/shuttertrack/shuttertrack/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider is a configurable identity-provider endpoint.
type fakeProvider struct {
	server *httptest.Server

	hits          atomic.Int64
	rejectLookup  bool
	rejectRefresh bool
	rejectSignIn  string // provider error code, empty for success
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword", "/v1/accounts:signUp":
			if fp.rejectSignIn != "" {
				writeProviderError(w, fp.rejectSignIn)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"localId":      "uid-1",
				"email":        "kara@example.com",
				"displayName":  "",
				"idToken":      "id-token-1",
				"refreshToken": "refresh-1",
			})
		case "/v1/accounts:signInWithIdp":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"localId":      "uid-fed",
				"email":        "kara@example.com",
				"idToken":      "fed-token",
				"refreshToken": "fed-refresh",
			})
		case "/v1/accounts:lookup":
			if fp.rejectLookup {
				writeProviderError(w, "INVALID_ID_TOKEN")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{"localId": "uid-1", "email": "kara@example.com"}},
			})
		case "/v1/token":
			if fp.rejectRefresh {
				writeProviderError(w, "INVALID_REFRESH_TOKEN")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id_token":      "id-token-2",
				"refresh_token": "refresh-2",
				"user_id":       "uid-1",
			})
		case "/v1/accounts:update", "/v1/accounts:sendOobCode":
			_ = json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func writeProviderError(w http.ResponseWriter, code string) {
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 400, "message": code},
	})
}

func newTestSession(t *testing.T, fp *fakeProvider) (*Session, *session.Store) {
	t.Helper()
	client := provider.NewClient(&config.ProviderConfig{
		APIKey:          "test-key",
		IdentityBaseURL: fp.server.URL,
		TokenBaseURL:    fp.server.URL,
		Timeout:         5 * time.Second,
	}, zap.NewNop())
	store := session.NewStore(flagstore.NewMemoryStore(), session.PlainProtector{}, zap.NewNop())
	authSession := NewSession(client, store, zap.NewNop())
	authSession.background = func(f func()) { f() } // run side work inline in tests
	return authSession, store
}

func TestSession_SignIn_PersistsCredential(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, store := newTestSession(t, fp)

	cred, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", cred.LocalID)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "id-token-1", stored.IDToken)
	assert.True(t, authSession.IsAuthenticated())
}

func TestSession_SignIn_InvalidInputSkipsNetwork(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "hunter22"},
		{"no at sign", "karaexample.com", "hunter22"},
		{"no domain dot", "kara@examplecom", "hunter22"},
		{"empty password", "kara@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := authSession.SignIn(context.Background(), tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, HasKind(err, KindInvalidInput))
		})
	}
	assert.Equal(t, int64(0), fp.hits.Load(), "invalid input must not reach the provider")
}

func TestSession_SignUp_ProviderRejected(t *testing.T) {
	fp := newFakeProvider(t)
	fp.rejectSignIn = "EMAIL_EXISTS"
	authSession, _ := newTestSession(t, fp)

	_, err := authSession.SignUp(context.Background(), "kara@example.com", "hunter22", "Kara")
	require.Error(t, err)
	assert.True(t, HasKind(err, KindProviderRejected))

	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "EMAIL_EXISTS", authErr.Code)
	assert.Equal(t, "an account with this email already exists", authErr.Message)
}

func TestSession_SignUp_ShortPassword(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	_, err := authSession.SignUp(context.Background(), "kara@example.com", "abc", "Kara")
	require.Error(t, err)
	assert.True(t, HasKind(err, KindInvalidInput))
	assert.Equal(t, int64(0), fp.hits.Load())
}

func TestSession_CheckState_LookupOK(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	_, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)

	ok, cred := authSession.CheckState(context.Background())
	assert.True(t, ok)
	require.NotNil(t, cred)
	assert.Equal(t, "id-token-1", cred.IDToken)
}

func TestSession_CheckState_RefreshRecovers(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, store := newTestSession(t, fp)

	_, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)
	fp.rejectLookup = true

	ok, cred := authSession.CheckState(context.Background())
	assert.True(t, ok)
	require.NotNil(t, cred)
	assert.Equal(t, "id-token-2", cred.IDToken)
	assert.Equal(t, "refresh-2", cred.RefreshToken)
	// Refresh responses carry no profile fields; they must be preserved.
	assert.Equal(t, "kara@example.com", cred.Email)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "id-token-2", stored.IDToken)
}

func TestSession_CheckState_Downgrade(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, store := newTestSession(t, fp)

	_, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)
	fp.rejectLookup = true
	fp.rejectRefresh = true

	ok, cred := authSession.CheckState(context.Background())
	assert.False(t, ok)
	assert.Nil(t, cred)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored, "session must be cleared after irrecoverable rejection")
	assert.False(t, authSession.IsAuthenticated())
}

func TestSession_CheckState_OfflineTrustsLocalState(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	_, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)

	// Provider becomes unreachable.
	fp.server.Close()

	ok, cred := authSession.CheckState(context.Background())
	assert.True(t, ok)
	require.NotNil(t, cred)
	assert.Equal(t, "id-token-1", cred.IDToken)
}

func TestSession_CheckState_NoSession(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	ok, cred := authSession.CheckState(context.Background())
	assert.False(t, ok)
	assert.Nil(t, cred)
	assert.Equal(t, int64(0), fp.hits.Load(), "no network call without a stored credential")
}

func TestSession_SignOut_Idempotent(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	_, err := authSession.SignIn(context.Background(), "kara@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, authSession.SignOut())
	assert.False(t, authSession.IsAuthenticated())
	require.NoError(t, authSession.SignOut())
}

func TestSession_ExchangeExternalIdentity(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, store := newTestSession(t, fp)

	cred, err := authSession.ExchangeExternalIdentity(context.Background(), "google-raw-token")
	require.NoError(t, err)
	assert.Equal(t, "uid-fed", cred.LocalID)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "fed-token", stored.IDToken)
}

func TestSession_Refresh_EmptyToken(t *testing.T) {
	fp := newFakeProvider(t)
	authSession, _ := newTestSession(t, fp)

	assert.Nil(t, authSession.Refresh(context.Background(), ""))
	assert.Equal(t, int64(0), fp.hits.Load())
}
