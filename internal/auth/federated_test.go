// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/authtest"
	"github.com/cinebook/authcore/internal/auth/mocks"
	"github.com/cinebook/authcore/pkg/errutil"
)

var ada = auth.FederatedIdentity{
	Subject:       "google-sub-1",
	Email:         "Ada@Example.com",
	GivenName:     "Ada",
	FamilyName:    "Lovelace",
	EmailVerified: true,
}

type federatedFixture struct {
	dir    *authtest.Directory
	signer *auth.JWTSigner
	sink   *authtest.RecordingSink
	authn  *auth.FederatedAuthenticator
}

func newFederatedFixture(t *testing.T, verifier auth.IdentityVerifier) *federatedFixture {
	t.Helper()
	f := &federatedFixture{
		dir:    authtest.NewDirectory(),
		signer: newTestSigner(t),
		sink:   &authtest.RecordingSink{},
	}
	var err error
	f.authn, err = auth.NewFederatedAuthenticator(verifier, f.dir, newTestIssuer(t, f.signer),
		auth.WithEventSink(f.sink),
		auth.WithLogger(discardLogger()))
	require.NoError(t, err)
	return f
}

func TestNewFederatedAuthenticator_NilDependencies(t *testing.T) {
	verifier := mocks.NewMockIdentityVerifier(t)
	dir := mocks.NewMockAccountDirectory(t)
	issuer := newTestIssuer(t, newTestSigner(t))

	tests := []struct {
		name        string
		verifier    auth.IdentityVerifier
		directory   auth.AccountDirectory
		issuer      *auth.SessionIssuer
		expectError string
	}{
		{"nil verifier", nil, dir, issuer, "identity verifier is required"},
		{"nil directory", verifier, nil, issuer, "account directory is required"},
		{"nil issuer", verifier, dir, nil, "session issuer is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := auth.NewFederatedAuthenticator(tt.verifier, tt.directory, tt.issuer)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestFederatedAuthenticator_FirstLoginCreatesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": ada})

	pair, err := f.authn.Authenticate(ctx, "tok")
	require.NoError(t, err)

	account, err := f.dir.FindByFederatedID(ctx, ada.Subject)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email)
	assert.Equal(t, "Ada", account.FirstName)
	assert.Equal(t, "Lovelace", account.LastName)
	assert.Equal(t, auth.RoleCustomer, account.Role)
	assert.Nil(t, account.PasswordHash)
	require.NoError(t, account.Validate())

	claims, err := f.signer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(account.ID, 10), claims[auth.ClaimSubject])
	assert.Equal(t, "CUSTOMER", claims[auth.ClaimRole])

	assert.Equal(t, []string{auth.EventUserRegistration, auth.EventLoginSuccess}, f.sink.Names())
}

func TestFederatedAuthenticator_ReturningUser(t *testing.T) {
	ctx := context.Background()
	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": ada})

	_, err := f.authn.Authenticate(ctx, "tok")
	require.NoError(t, err)
	_, err = f.authn.Authenticate(ctx, "tok")
	require.NoError(t, err)

	assert.Equal(t, 1, f.dir.Count())
	assert.Equal(t, []string{
		auth.EventUserRegistration, auth.EventLoginSuccess, auth.EventLoginSuccess,
	}, f.sink.Names())
}

func TestFederatedAuthenticator_LinksVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": ada})
	existing := f.dir.AddPasswordAccount("ada@example.com", "hash", auth.RoleAdmin)

	pair, err := f.authn.Authenticate(ctx, "tok")
	require.NoError(t, err)

	linked := f.dir.Get(existing.ID)
	require.NotNil(t, linked.FederatedID)
	assert.Equal(t, ada.Subject, *linked.FederatedID)
	assert.Equal(t, 1, f.dir.Count())

	claims, err := f.signer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims[auth.ClaimRole])
	assert.Equal(t, []string{auth.EventAccountLinked, auth.EventLoginSuccess}, f.sink.Names())
}

func TestFederatedAuthenticator_UnverifiedEmailMatchIsRejected(t *testing.T) {
	ctx := context.Background()
	unverified := ada
	unverified.EmailVerified = false
	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": unverified})
	existing := f.dir.AddPasswordAccount("ada@example.com", "hash", auth.RoleCustomer)

	_, err := f.authn.Authenticate(ctx, "tok")
	errutil.AssertErrorCode(t, err, auth.CodeUnauthorized)
	assert.Nil(t, f.dir.Get(existing.ID).FederatedID)
}

func TestFederatedAuthenticator_InvalidInput(t *testing.T) {
	ctx := context.Background()
	noName := ada
	noName.FamilyName = ""
	noEmail := ada
	noEmail.Email = ""

	f := newFederatedFixture(t, authtest.StaticVerifier{"no-name": noName, "no-email": noEmail})

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"empty token", "", auth.CodeInvalidToken},
		{"unknown token", "forged", auth.CodeInvalidToken},
		{"missing family name", "no-name", auth.CodeBadRequest},
		{"missing email", "no-email", auth.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.authn.Authenticate(ctx, tt.token)
			require.Error(t, err)
			assert.Nil(t, pair)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
	assert.Equal(t, 0, f.dir.Count())
}

func TestFederatedAuthenticator_LookupErrorIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	verifier := mocks.NewMockIdentityVerifier(t)
	dir := mocks.NewMockAccountDirectory(t)
	identity := ada
	verifier.On("VerifyIdentityToken", mock.Anything, "tok").Return(&identity, nil)
	dir.On("FindByFederatedID", mock.Anything, ada.Subject).Return(nil, errors.New("connection refused"))

	a, err := auth.NewFederatedAuthenticator(verifier, dir, newTestIssuer(t, newTestSigner(t)), auth.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = a.Authenticate(ctx, "tok")
	errutil.AssertErrorCode(t, err, auth.CodeUnauthorized)
}

func TestFederatedAuthenticator_CreateConflictRereads(t *testing.T) {
	ctx := context.Background()
	verifier := mocks.NewMockIdentityVerifier(t)
	dir := mocks.NewMockAccountDirectory(t)
	identity := ada
	winner := &auth.Account{ID: 77, Email: "ada@example.com", Role: auth.RoleCustomer, FederatedID: strPtr(ada.Subject)}

	verifier.On("VerifyIdentityToken", mock.Anything, "tok").Return(&identity, nil)
	dir.On("FindByFederatedID", mock.Anything, ada.Subject).Return(nil, auth.ErrNotFound).Once()
	dir.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
	dir.On("CreateFederatedAccount", mock.Anything, auth.FederatedAccountInput{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", ProviderSubjectID: ada.Subject,
	}).Return(nil, auth.ErrAccountExists)
	dir.On("FindByFederatedID", mock.Anything, ada.Subject).Return(winner, nil).Once()

	signer := newTestSigner(t)
	a, err := auth.NewFederatedAuthenticator(verifier, dir, newTestIssuer(t, signer))
	require.NoError(t, err)

	pair, err := a.Authenticate(ctx, "tok")
	require.NoError(t, err)
	claims, err := signer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "77", claims[auth.ClaimSubject])
}

func TestFederatedAuthenticator_ConcurrentFirstLoginCreatesOneAccount(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": ada})

	const logins = 10
	subjects := make([]string, logins)
	errs := make([]error, logins)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range logins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pair, err := f.authn.Authenticate(ctx, "tok")
			errs[i] = err
			if err == nil {
				claims, verr := f.signer.Verify(pair.AccessToken)
				if verr == nil {
					subjects[i], _ = claims.String(auth.ClaimSubject)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.dir.Count())
	for _, sub := range subjects {
		assert.Equal(t, subjects[0], sub)
	}
}
