package session

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCredential() Credential {
	return Credential{
		LocalID:      "uid-123",
		Email:        "kara@example.com",
		DisplayName:  "Kara",
		IDToken:      "id-token-abc",
		RefreshToken: "refresh-xyz",
	}
}

// failingProtector always fails to seal, forcing the plain-tier fallback.
type failingProtector struct{}

func (failingProtector) Seal([]byte) (string, error) { return "", fmt.Errorf("tier unavailable") }
func (failingProtector) Open(string) ([]byte, error) { return nil, fmt.Errorf("tier unavailable") }

func TestStore_RoundTrip_Sealed(t *testing.T) {
	protector, err := NewAESGCMProtector(filepath.Join(t.TempDir(), "session.key"))
	require.NoError(t, err)
	store := NewStore(flagstore.NewMemoryStore(), protector, zap.NewNop())

	want := testCredential()
	require.NoError(t, store.Persist(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LocalID, got.LocalID)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.DisplayName, got.DisplayName)
	assert.Equal(t, want.IDToken, got.IDToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.False(t, got.SavedAt.IsZero())
	assert.True(t, got.IsAuthenticated())
}

func TestStore_RoundTrip_PlainFallback(t *testing.T) {
	flags := flagstore.NewMemoryStore()
	store := NewStore(flags, failingProtector{}, zap.NewNop())

	want := testCredential()
	require.NoError(t, store.Persist(want))

	// The sealed tier never got the blob.
	sealed, err := flags.Get("SessionBlob", "")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.IDToken, got.IDToken)
	assert.Equal(t, want.LocalID, got.LocalID)
}

func TestStore_LegacyMigration(t *testing.T) {
	flags := flagstore.NewMemoryStore()

	// Simulate data written by an older release: flat keys only, no blob.
	require.NoError(t, flags.Set("AuthUserId", "uid-legacy"))
	require.NoError(t, flags.Set("AuthEmail", "old@example.com"))
	require.NoError(t, flags.Set("AuthDisplayName", "Old Timer"))
	require.NoError(t, flags.Set("AuthIdToken", "legacy-id-token"))
	require.NoError(t, flags.Set("AuthRefreshToken", "legacy-refresh"))
	require.NoError(t, flags.Set("AuthSavedUtc", "1700000000000"))

	store := NewStore(flags, PlainProtector{}, zap.NewNop())
	migratedAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return migratedAt }

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "uid-legacy", got.LocalID)
	assert.Equal(t, "old@example.com", got.Email)
	assert.Equal(t, "Old Timer", got.DisplayName)
	assert.Equal(t, "legacy-id-token", got.IDToken)
	assert.Equal(t, "legacy-refresh", got.RefreshToken)
	// The returned credential is the re-persisted form, not the legacy one.
	assert.True(t, got.SavedAt.Equal(migratedAt), "SavedAt = %v, want %v", got.SavedAt, migratedAt)

	// Migration re-persisted through the normal path.
	blob, err := flags.Get("SessionBlob", "")
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	// A second load reads the migrated blob and agrees with the first.
	again, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, got, again)
}

func TestStore_LoadEmpty(t *testing.T) {
	store := NewStore(flagstore.NewMemoryStore(), PlainProtector{}, zap.NewNop())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Clear(t *testing.T) {
	flags := flagstore.NewMemoryStore()
	store := NewStore(flags, PlainProtector{}, zap.NewNop())

	require.NoError(t, store.Persist(testCredential()))
	require.NoError(t, store.Clear())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, key := range []string{"SessionBlob", "SessionBlobPlain", "AuthUserId", "AuthIdToken"} {
		value, err := flags.Get(key, "")
		require.NoError(t, err)
		assert.Empty(t, value, "key %s should be cleared", key)
	}

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestStore_PersistOverwritesStalePlainTier(t *testing.T) {
	flags := flagstore.NewMemoryStore()
	protector, err := NewAESGCMProtector(filepath.Join(t.TempDir(), "session.key"))
	require.NoError(t, err)

	// First write lands on the plain tier.
	plainStore := NewStore(flags, failingProtector{}, zap.NewNop())
	stale := testCredential()
	stale.IDToken = "stale-token"
	require.NoError(t, plainStore.Persist(stale))

	// Second write seals successfully and must shadow the stale plain copy.
	sealedStore := NewStore(flags, protector, zap.NewNop())
	fresh := testCredential()
	require.NoError(t, sealedStore.Persist(fresh))

	got, err := sealedStore.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "id-token-abc", got.IDToken)
}

func TestAESGCMProtector_KeyReuseAcrossInstances(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "session.key")

	first, err := NewAESGCMProtector(keyFile)
	require.NoError(t, err)
	sealed, err := first.Seal([]byte("payload"))
	require.NoError(t, err)

	second, err := NewAESGCMProtector(keyFile)
	require.NoError(t, err)
	opened, err := second.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(opened))
}
