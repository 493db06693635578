// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32 // 32 bytes = 64 hex chars
	DefaultResetTTL = 15 * time.Minute
)

// ResetRecord is a stored password-reset request. Only the SHA-256 of the
// token is kept.
type ResetRecord struct {
	ID         ulid.ULID
	TokenHash  string
	AccountID  int64
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// Usable reports whether the record is unconsumed and unexpired at now.
func (r *ResetRecord) Usable(now time.Time) bool {
	return r.ConsumedAt == nil && now.Before(r.ExpiresAt)
}

// ResetTokenStore persists reset records keyed by token hash.
type ResetTokenStore interface {
	// Put stores a new record.
	Put(ctx context.Context, rec *ResetRecord) error

	// Get returns the record for tokenHash or ErrNotFound.
	Get(ctx context.Context, tokenHash string) (*ResetRecord, error)

	// TryConsume atomically marks the record consumed if it is still usable at
	// now. Exactly one of any number of concurrent callers gets true.
	TryConsume(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

// ResetTokenPurger is implemented by stores that can drop stale records.
type ResetTokenPurger interface {
	// DeleteExpired removes records that expired before the given time and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// GenerateResetToken creates a random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code(CodeHashingFailed).With("operation", "generate reset token").Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken returns the hex SHA-256 under which a token is stored.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func wellFormedResetToken(token string) bool {
	if len(token) != 2*ResetTokenBytes {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// ResetTicket is the result of CreateResetToken. Deliverable is false when
// the email is unknown; the token is then random and was never stored, so
// callers must not send it but may treat it like any other token.
type ResetTicket struct {
	Token       string
	Email       string
	Deliverable bool
	ExpiresAt   time.Time
}

// PasswordResetFlow issues, validates and consumes single-use reset tokens.
type PasswordResetFlow struct {
	directory AccountDirectory
	store     ResetTokenStore
	hasher    PasswordHasher
	ttl       time.Duration
	opts      options
}

// NewPasswordResetFlow creates a PasswordResetFlow. A non-positive ttl
// selects DefaultResetTTL.
func NewPasswordResetFlow(directory AccountDirectory, store ResetTokenStore, hasher PasswordHasher, ttl time.Duration, opts ...Option) (*PasswordResetFlow, error) {
	if err := requireDep(directory != nil, "account directory"); err != nil {
		return nil, err
	}
	if err := requireDep(store != nil, "reset token store"); err != nil {
		return nil, err
	}
	if err := requireDep(hasher != nil, "password hasher"); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &PasswordResetFlow{
		directory: directory,
		store:     store,
		hasher:    hasher,
		ttl:       ttl,
		opts:      newOptions(opts),
	}, nil
}

// CreateResetToken returns a reset ticket for email. The result has the same
// shape whether or not the account exists.
func (f *PasswordResetFlow) CreateResetToken(ctx context.Context, email string) (ticket *ResetTicket, err error) {
	defer func() { recordReset(StageRequest, outcomeOf(err)) }()

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return nil, err
	}

	email = NormalizeEmail(email)
	now := f.opts.now()
	ticket = &ResetTicket{Token: token, Email: email, ExpiresAt: now.Add(f.ttl)}

	callCtx, cancel := f.opts.call(ctx)
	account, err := f.directory.FindByEmail(callCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			f.opts.logger.DebugContext(ctx, "reset requested for unknown email")
			return ticket, nil
		}
		return nil, directoryUnavailable("find account by email", err)
	}

	rec := &ResetRecord{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		AccountID: account.ID,
		ExpiresAt: ticket.ExpiresAt,
		CreatedAt: now,
	}
	callCtx, cancel = f.opts.call(ctx)
	err = f.store.Put(callCtx, rec)
	cancel()
	if err != nil {
		return nil, directoryUnavailable("store reset token", err)
	}

	ticket.Deliverable = true
	f.opts.sink.RecordEvent(ctx, EventResetRequested, map[string]string{
		"account_id": strconv.FormatInt(account.ID, 10),
	})
	return ticket, nil
}

// ValidateResetToken reports whether token is stored, unconsumed and
// unexpired. Store failures are logged and reported as false.
func (f *PasswordResetFlow) ValidateResetToken(ctx context.Context, token string) bool {
	if !wellFormedResetToken(token) {
		return false
	}

	callCtx, cancel := f.opts.call(ctx)
	rec, err := f.store.Get(callCtx, HashResetToken(token))
	cancel()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.opts.logger.WarnContext(ctx, "reset token lookup failed",
				"operation", "get_reset_token",
				"error", err.Error())
		}
		return false
	}
	return rec.Usable(f.opts.now())
}

// ResetPassword consumes token and sets the account password to newPassword.
// Unknown, expired and already-used tokens all fail with the same BadRequest.
func (f *PasswordResetFlow) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { recordReset(StageApply, outcomeOf(err)) }()

	if newPassword == "" {
		return badRequest("new password cannot be empty")
	}
	if !wellFormedResetToken(token) {
		return invalidResetToken()
	}
	tokenHash := HashResetToken(token)
	now := f.opts.now()

	callCtx, cancel := f.opts.call(ctx)
	rec, err := f.store.Get(callCtx, tokenHash)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken()
		}
		return directoryUnavailable("get reset token", err)
	}
	if !rec.Usable(now) {
		return invalidResetToken()
	}

	newHash, err := f.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeHashingFailed).With("operation", "hash_password").Wrap(opaque(err))
	}

	callCtx, cancel = f.opts.call(ctx)
	consumed, err := f.store.TryConsume(callCtx, tokenHash, now)
	cancel()
	if err != nil {
		return directoryUnavailable("consume reset token", err)
	}
	if !consumed {
		return invalidResetToken()
	}

	callCtx, cancel = f.opts.call(ctx)
	err = f.directory.UpdatePasswordHash(callCtx, rec.AccountID, newHash)
	cancel()
	if err != nil {
		// The token is already spent; the user must request a new one.
		f.opts.logger.ErrorContext(ctx, "password update failed after consuming reset token",
			"account_id", rec.AccountID,
			"operation", "update_password_hash",
			"error", err.Error())
		return directoryUnavailable("update password hash", err)
	}

	f.opts.sink.RecordEvent(ctx, EventPasswordReset, map[string]string{
		"account_id": strconv.FormatInt(rec.AccountID, 10),
	})
	return nil
}
