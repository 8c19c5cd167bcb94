// Package progressstore implements the progress.Store contract on top of a
// kv.Store backend. It owns the serialization, schema migration, and the
// tiered fallback that keeps the landing page working no matter what state
// the storage backend is in: every failure here degrades to the next tier
// and is logged, never surfaced to the visitor.
package progressstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/kv"
)

// Store implements progress.Store.
type Store struct {
	backend kv.Store
	logger  *slog.Logger
}

// New creates a progress store over the given backend.
func New(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "progressstore"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// VISITOR ID
// ══════════════════════════════════════════════════════════════════════════════

// VisitorID mints a stable identifier for a visitor that has none yet and
// seeds its default progress record. Never fails: if the backend is down,
// the identifier is still returned and the record will be created on the
// first successful Save.
func (s *Store) VisitorID(ctx context.Context) string {
	id := uuid.New().String()

	record := progress.NewRecord(id)
	if err := s.Save(ctx, record); err != nil {
		s.logger.Warn("could not seed progress record, continuing with in-memory id",
			"visitor_id", id, "error", err)
	}
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD (tiered restoration)
// ══════════════════════════════════════════════════════════════════════════════

// Load restores a progress record through three tiers:
//
//  1. session pointer: hints carry a visitor id plus the raw restore token
//     issued at registration; the pointer's bcrypt hash must match.
//  2. plain record lookup by the visitor id the landing page cached.
//  3. a brand-new default record.
//
// Parse, migration, and validation failures at any tier downgrade to the
// next one. The returned record is always usable.
func (s *Store) Load(ctx context.Context, hints progress.LoadHints) *progress.Record {
	if hints.SessionToken != "" && hints.VisitorID != "" {
		if record := s.loadViaSession(ctx, hints.VisitorID, hints.SessionToken); record != nil {
			return record
		}
	}

	if hints.VisitorID != "" {
		if record := s.loadByID(ctx, hints.VisitorID); record != nil {
			return record
		}
		// The cached id is still the visitor's identity even when the
		// stored blob is gone or corrupt.
		return progress.NewRecord(hints.VisitorID)
	}

	return progress.NewRecord(uuid.New().String())
}

// loadViaSession resolves the session pointer tier. Returns nil when the
// tier cannot produce a valid logged-in record.
func (s *Store) loadViaSession(ctx context.Context, visitorID, rawToken string) *progress.Record {
	data, err := s.backend.Get(ctx, kv.SessionKey(visitorID))
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			s.logger.Warn("session pointer read failed", "visitor_id", visitorID, "error", err)
		}
		return nil
	}

	var pointer progress.SessionPointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		corrupt := shared.WrapError("session", "Load", shared.ErrSessionCorrupt,
			"session pointer is unreadable", err)
		s.logger.Warn("session pointer is corrupt, ignoring", "visitor_id", visitorID, "error", corrupt)
		return nil
	}

	if bcrypt.CompareHashAndPassword([]byte(pointer.TokenHash), []byte(rawToken)) != nil {
		s.logger.Warn("session token mismatch", "visitor_id", visitorID)
		return nil
	}

	record := s.loadByID(ctx, pointer.VisitorID)
	if record == nil || !record.IsLoggedIn {
		return nil
	}
	return record
}

// loadByID reads and migrates a record blob. Returns nil on any failure.
func (s *Store) loadByID(ctx context.Context, visitorID string) *progress.Record {
	data, err := s.backend.Get(ctx, kv.ProgressKey(visitorID))
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			s.logger.Warn("progress read failed", "visitor_id", visitorID, "error", err)
		}
		return nil
	}

	record, err := progress.Migrate(data)
	if err != nil {
		s.logger.Warn("progress record unrecoverable, falling back to defaults",
			"visitor_id", visitorID, "error", err)
		return nil
	}

	if record.VisitorID == "" {
		record.VisitorID = visitorID
	}
	if err := record.Validate(); err != nil {
		s.logger.Warn("migrated record failed validation, falling back to defaults",
			"visitor_id", visitorID, "error", err)
		return nil
	}
	return record
}

// ══════════════════════════════════════════════════════════════════════════════
// SAVE
// ══════════════════════════════════════════════════════════════════════════════

// Save validates and writes the whole record in one backend write. When the
// record is identified and a session pointer already exists, the pointer's
// email is kept in step; its token hash is left untouched.
func (s *Store) Save(ctx context.Context, record *progress.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.backend.Set(ctx, kv.ProgressKey(record.VisitorID), data); err != nil {
		s.logger.Error("progress write failed", "visitor_id", record.VisitorID, "error", err)
		return err
	}

	if record.IsLoggedIn {
		s.refreshSessionEmail(ctx, record)
	}
	return nil
}

// refreshSessionEmail keeps an existing pointer's email current. Best
// effort: a missing pointer or failed write is not an error for Save.
func (s *Store) refreshSessionEmail(ctx context.Context, record *progress.Record) {
	data, err := s.backend.Get(ctx, kv.SessionKey(record.VisitorID))
	if err != nil {
		return
	}

	var pointer progress.SessionPointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		return
	}
	if pointer.Email == record.Email {
		return
	}

	pointer.Email = record.Email
	if updated, err := json.Marshal(pointer); err == nil {
		if err := s.backend.Set(ctx, kv.SessionKey(record.VisitorID), updated); err != nil {
			s.logger.Warn("session pointer refresh failed", "visitor_id", record.VisitorID, "error", err)
		}
	}
}

// SaveSession writes the session pointer for an identified record. Only the
// bcrypt hash of the raw token is stored.
func (s *Store) SaveSession(ctx context.Context, record *progress.Record, rawToken string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pointer := progress.SessionPointer{
		VisitorID: record.VisitorID,
		Email:     record.Email,
		TokenHash: string(hash),
		LoginTime: record.UpdatedAt,
	}

	data, err := json.Marshal(pointer)
	if err != nil {
		return err
	}

	if err := s.backend.Set(ctx, kv.SessionKey(record.VisitorID), data); err != nil {
		s.logger.Error("session pointer write failed", "visitor_id", record.VisitorID, "error", err)
		return err
	}
	return nil
}

// ClearSession removes only the session pointer. The underlying progress
// record survives a logout, so an anonymous id keeps its history.
func (s *Store) ClearSession(ctx context.Context, visitorID string) error {
	if err := s.backend.Delete(ctx, kv.SessionKey(visitorID)); err != nil {
		s.logger.Error("session pointer delete failed", "visitor_id", visitorID, "error", err)
		return err
	}
	return nil
}
