package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"go.uber.org/zap"
)

// Flag keys used by the store. The legacy flat keys predate the blob format
// and are still written so older installs can read the session back.
const (
	keySealedBlob = "SessionBlob"
	keyPlainBlob  = "SessionBlobPlain"

	legacyKeyUserID       = "AuthUserId"
	legacyKeyEmail        = "AuthEmail"
	legacyKeyDisplayName  = "AuthDisplayName"
	legacyKeyIDToken      = "AuthIdToken"
	legacyKeyRefreshToken = "AuthRefreshToken"
	legacyKeySavedUTC     = "AuthSavedUtc"
)

// Store persists the current Credential through the durable flag store.
// Writes go to the sealed tier first and degrade to the plain tier when
// sealing is unavailable; reads walk the tiers in the same order and migrate
// legacy flat-key data forward.
type Store struct {
	flags     flagstore.Store
	protector Protector
	log       *zap.Logger
	now       func() time.Time
}

// NewStore builds a Store on the given flag store and protector.
func NewStore(flags flagstore.Store, protector Protector, log *zap.Logger) *Store {
	if protector == nil {
		protector = PlainProtector{}
	}
	return &Store{
		flags:     flags,
		protector: protector,
		log:       log,
		now:       time.Now,
	}
}

// Persist serializes the credential and writes it durably. The sealed tier is
// preferred; the plain tier is the fallback when sealing fails. Legacy flat
// keys are mirrored on every write.
func (s *Store) Persist(cred Credential) error {
	cred.SavedAt = s.now().UTC()

	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("serialize credential: %w", err)
	}

	wrote := false
	if sealed, sealErr := s.protector.Seal(blob); sealErr == nil {
		if setErr := s.flags.Set(keySealedBlob, sealed); setErr == nil {
			wrote = true
			// Drop any stale plain copy so load cannot resurrect old data.
			_ = s.flags.Remove(keyPlainBlob)
		} else {
			s.log.Warn("sealed session write failed, falling back to plain tier", zap.Error(setErr))
		}
	} else {
		s.log.Warn("session seal failed, falling back to plain tier", zap.Error(sealErr))
	}

	if !wrote {
		if err := s.flags.Set(keyPlainBlob, string(blob)); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}

	s.mirrorLegacyKeys(cred)
	return nil
}

// Load returns the persisted credential, or nil when none is stored. It
// checks the sealed tier, then the plain tier, then reconstructs from legacy
// flat keys, re-persisting through the normal path in the legacy case.
func (s *Store) Load() (*Credential, error) {
	if sealed, err := s.flags.Get(keySealedBlob, ""); err == nil && sealed != "" {
		if blob, openErr := s.protector.Open(sealed); openErr == nil {
			if cred, decErr := decodeCredential(blob); decErr == nil {
				return cred, nil
			} else {
				s.log.Warn("stored session blob is corrupt", zap.Error(decErr))
			}
		} else {
			s.log.Warn("stored session blob could not be opened", zap.Error(openErr))
		}
	}

	if plain, err := s.flags.Get(keyPlainBlob, ""); err == nil && plain != "" {
		if cred, decErr := decodeCredential([]byte(plain)); decErr == nil {
			return cred, nil
		} else {
			s.log.Warn("plain session blob is corrupt", zap.Error(decErr))
		}
	}

	cred := s.loadLegacy()
	if cred == nil {
		return nil, nil
	}
	// One-time migration: rewrite through the normal path, then re-read so
	// the caller gets exactly what is now stored (Persist stamps SavedAt).
	if err := s.Persist(*cred); err != nil {
		s.log.Warn("legacy session migration failed", zap.Error(err))
		return cred, nil
	}
	return s.Load()
}

// Clear removes the credential from both tiers and all legacy keys.
// Idempotent.
func (s *Store) Clear() error {
	keys := []string{
		keySealedBlob, keyPlainBlob,
		legacyKeyUserID, legacyKeyEmail, legacyKeyDisplayName,
		legacyKeyIDToken, legacyKeyRefreshToken, legacyKeySavedUTC,
	}
	var firstErr error
	for _, key := range keys {
		if err := s.flags.Remove(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) mirrorLegacyKeys(cred Credential) {
	pairs := map[string]string{
		legacyKeyUserID:       cred.LocalID,
		legacyKeyEmail:        cred.Email,
		legacyKeyDisplayName:  cred.DisplayName,
		legacyKeyIDToken:      cred.IDToken,
		legacyKeyRefreshToken: cred.RefreshToken,
		legacyKeySavedUTC:     strconv.FormatInt(cred.SavedAt.UnixMilli(), 10),
	}
	for key, value := range pairs {
		if err := s.flags.Set(key, value); err != nil {
			s.log.Warn("legacy session key mirror failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Store) loadLegacy() *Credential {
	localID, _ := s.flags.Get(legacyKeyUserID, "")
	idToken, _ := s.flags.Get(legacyKeyIDToken, "")
	if localID == "" || idToken == "" {
		return nil
	}
	email, _ := s.flags.Get(legacyKeyEmail, "")
	displayName, _ := s.flags.Get(legacyKeyDisplayName, "")
	refreshToken, _ := s.flags.Get(legacyKeyRefreshToken, "")

	cred := &Credential{
		LocalID:      localID,
		Email:        email,
		DisplayName:  displayName,
		IDToken:      idToken,
		RefreshToken: refreshToken,
	}
	if raw, _ := s.flags.Get(legacyKeySavedUTC, ""); raw != "" {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cred.SavedAt = time.UnixMilli(millis).UTC()
		}
	}
	return cred
}

func decodeCredential(blob []byte) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(blob, &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if cred.LocalID == "" && cred.IDToken == "" {
		return nil, fmt.Errorf("decoded credential is empty")
	}
	return &cred, nil
}
