// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package redis_test

import (
	"testing"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/authtest"
)

func newDirectory(t *testing.T, passwordHash string) *authtest.Directory {
	t.Helper()
	directory := authtest.NewDirectory()
	directory.AddPasswordAccount("ada@example.com", passwordHash, auth.RoleCustomer)
	return directory
}
