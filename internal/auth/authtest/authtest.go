// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package authtest provides in-memory implementations of the auth
// collaborators for tests and local tooling.
package authtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cinebook/authcore/internal/auth"
)

// Directory is a concurrency-safe in-memory auth.AccountDirectory. It
// enforces email and federated-id uniqueness.
type Directory struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*auth.Account
	now      func() time.Time
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{accounts: make(map[int64]*auth.Account), now: time.Now}
}

// AddPasswordAccount stores an account that logs in with a password hash
// and returns a copy of it.
func (d *Directory) AddPasswordAccount(email, passwordHash string, role auth.Role) *auth.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	now := d.now()
	hash := passwordHash
	acc := &auth.Account{
		ID:           d.nextID,
		Email:        auth.NormalizeEmail(email),
		PasswordHash: &hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.accounts[acc.ID] = acc
	return clone(acc)
}

// SetRole changes the role of an account.
func (d *Directory) SetRole(id int64, role auth.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc, ok := d.accounts[id]; ok {
		acc.Role = role
	}
}

// Delete removes an account.
func (d *Directory) Delete(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accounts, id)
}

// Count returns the number of stored accounts.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accounts)
}

// Get returns a copy of the account with id, or nil.
func (d *Directory) Get(id int64) *auth.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc, ok := d.accounts[id]; ok {
		return clone(acc)
	}
	return nil
}

// FindByEmail implements auth.AccountDirectory.
func (d *Directory) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, acc := range d.accounts {
		if acc.Email == email {
			return clone(acc), nil
		}
	}
	return nil, auth.ErrNotFound
}

// FindByID implements auth.AccountDirectory.
func (d *Directory) FindByID(_ context.Context, id int64) (*auth.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc, ok := d.accounts[id]; ok {
		return clone(acc), nil
	}
	return nil, auth.ErrNotFound
}

// FindByFederatedID implements auth.AccountDirectory.
func (d *Directory) FindByFederatedID(_ context.Context, subject string) (*auth.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc := d.bySubject(subject); acc != nil {
		return clone(acc), nil
	}
	return nil, auth.ErrNotFound
}

// CreateFederatedAccount implements auth.AccountDirectory.
func (d *Directory) CreateFederatedAccount(_ context.Context, in auth.FederatedAccountInput) (*auth.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := auth.NormalizeEmail(in.Email)
	if d.bySubject(in.ProviderSubjectID) != nil {
		return nil, auth.ErrAccountExists
	}
	for _, acc := range d.accounts {
		if acc.Email == email {
			return nil, auth.ErrAccountExists
		}
	}
	d.nextID++
	now := d.now()
	subject := in.ProviderSubjectID
	acc := &auth.Account{
		ID:          d.nextID,
		Email:       email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Role:        auth.RoleCustomer,
		FederatedID: &subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.accounts[acc.ID] = acc
	return clone(acc), nil
}

// LinkFederatedID implements auth.AccountDirectory.
func (d *Directory) LinkFederatedID(_ context.Context, id int64, subject string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	if owner := d.bySubject(subject); owner != nil && owner.ID != id {
		return auth.ErrAccountExists
	}
	if acc.FederatedID != nil && *acc.FederatedID != subject {
		return auth.ErrAccountExists
	}
	s := subject
	acc.FederatedID = &s
	acc.UpdatedAt = d.now()
	return nil
}

// UpdatePasswordHash implements auth.AccountDirectory.
func (d *Directory) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	h := hash
	acc.PasswordHash = &h
	acc.UpdatedAt = d.now()
	return nil
}

func (d *Directory) bySubject(subject string) *auth.Account {
	for _, acc := range d.accounts {
		if acc.FederatedID != nil && *acc.FederatedID == subject {
			return acc
		}
	}
	return nil
}

func clone(acc *auth.Account) *auth.Account {
	c := *acc
	if acc.PasswordHash != nil {
		h := *acc.PasswordHash
		c.PasswordHash = &h
	}
	if acc.FederatedID != nil {
		s := *acc.FederatedID
		c.FederatedID = &s
	}
	return &c
}

// ResetStore is a concurrency-safe in-memory auth.ResetTokenStore.
type ResetStore struct {
	mu      sync.Mutex
	records map[string]*auth.ResetRecord
}

// NewResetStore creates an empty ResetStore.
func NewResetStore() *ResetStore {
	return &ResetStore{records: make(map[string]*auth.ResetRecord)}
}

// Put implements auth.ResetTokenStore.
func (s *ResetStore) Put(_ context.Context, rec *auth.ResetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.records[rec.TokenHash] = &c
	return nil
}

// Get implements auth.ResetTokenStore.
func (s *ResetStore) Get(_ context.Context, tokenHash string) (*auth.ResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *rec
	return &c, nil
}

// TryConsume implements auth.ResetTokenStore.
func (s *ResetStore) TryConsume(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tokenHash]
	if !ok || !rec.Usable(now) {
		return false, nil
	}
	consumed := now
	rec.ConsumedAt = &consumed
	return true, nil
}

// DeleteExpired implements auth.ResetTokenPurger.
func (s *ResetStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.records {
		if rec.ExpiresAt.Before(before) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *ResetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Event is one call recorded by RecordingSink.
type Event struct {
	Name      string
	AccountID int64
	Email     string
	Role      auth.Role
	Reason    string
	Attrs     map[string]string
}

// RecordingSink is an auth.SecurityEventSink that keeps every event.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

// RecordLoginFailure implements auth.SecurityEventSink.
func (s *RecordingSink) RecordLoginFailure(_ context.Context, email, reason string) {
	s.add(Event{Name: auth.EventLoginFailure, Email: email, Reason: reason})
}

// RecordLoginSuccess implements auth.SecurityEventSink.
func (s *RecordingSink) RecordLoginSuccess(_ context.Context, accountID int64, email string, role auth.Role) {
	s.add(Event{Name: auth.EventLoginSuccess, AccountID: accountID, Email: email, Role: role})
}

// RecordEvent implements auth.SecurityEventSink.
func (s *RecordingSink) RecordEvent(_ context.Context, name string, attrs map[string]string) {
	c := make(map[string]string, len(attrs))
	for k, v := range attrs {
		c[k] = v
	}
	s.add(Event{Name: name, Attrs: c})
}

func (s *RecordingSink) add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Names returns the recorded event names in order.
func (s *RecordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.Name
	}
	return names
}

// StaticVerifier is an auth.IdentityVerifier that maps fixed provider tokens
// to identities. Unknown tokens are rejected.
type StaticVerifier map[string]auth.FederatedIdentity

// VerifyIdentityToken implements auth.IdentityVerifier.
func (v StaticVerifier) VerifyIdentityToken(_ context.Context, token string) (*auth.FederatedIdentity, error) {
	id, ok := v[token]
	if !ok {
		return nil, errUnknownToken
	}
	return &id, nil
}

var errUnknownToken = errors.New("unknown identity token")

var (
	_ auth.IdentityVerifier  = StaticVerifier(nil)
	_ auth.AccountDirectory  = (*Directory)(nil)
	_ auth.ResetTokenStore   = (*ResetStore)(nil)
	_ auth.ResetTokenPurger  = (*ResetStore)(nil)
	_ auth.SecurityEventSink = (*RecordingSink)(nil)
)
