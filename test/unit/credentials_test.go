// Package unit contains unit tests for individual components of the
// LineRelay server.
//
// These tests exercise specific types in isolation, using in-memory
// transports instead of real sockets where possible.
package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linerelay/linerelay/internal/chat"
	"github.com/linerelay/linerelay/test/testhelpers"
)

func TestVerifyMatchingCredentials(t *testing.T) {
	path := testhelpers.WriteUsersFile(t,
		"alice:secret-one",
		"bob:secret-two",
	)
	store := chat.NewFileCredentialStore(path)

	assert.True(t, store.Verify("alice", "secret-one"))
	assert.True(t, store.Verify("bob", "secret-two"))
}

func TestVerifyRejectsWrongPairs(t *testing.T) {
	path := testhelpers.WriteUsersFile(t, "alice:secret-one")
	store := chat.NewFileCredentialStore(path)

	assert.False(t, store.Verify("alice", "wrong"))
	assert.False(t, store.Verify("bob", "secret-one"))
	assert.False(t, store.Verify("", ""))
}

func TestVerifyFirstRecordWinsForDuplicateUsername(t *testing.T) {
	path := testhelpers.WriteUsersFile(t,
		"alice:first",
		"alice:second",
	)
	store := chat.NewFileCredentialStore(path)

	assert.True(t, store.Verify("alice", "first"))
	assert.False(t, store.Verify("alice", "second"))
}

func TestVerifySkipsMalformedAndCommentLines(t *testing.T) {
	path := testhelpers.WriteUsersFile(t,
		"# staff accounts",
		"",
		"not-a-record",
		"too:many:fields",
		"alice:secret",
	)
	store := chat.NewFileCredentialStore(path)

	assert.True(t, store.Verify("alice", "secret"))
	assert.False(t, store.Verify("not-a-record", ""))
	assert.False(t, store.Verify("too", "many:fields"))
}

func TestVerifyFailsClosedOnMissingFile(t *testing.T) {
	store := chat.NewFileCredentialStore(filepath.Join(t.TempDir(), "absent.txt"))

	assert.False(t, store.Verify("alice", "secret"))
}

func TestVerifyReReadsFileOnEachLookup(t *testing.T) {
	path := testhelpers.WriteUsersFile(t, "alice:secret")
	store := chat.NewFileCredentialStore(path)

	require.True(t, store.Verify("alice", "secret"))
	assert.False(t, store.Verify("carol", "other"))

	// Append a record without restarting anything.
	require.NoError(t, os.WriteFile(path, []byte("alice:secret\ncarol:other\n"), 0o600))
	assert.True(t, store.Verify("carol", "other"))
}

func TestVerifyBcryptRecord(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	path := testhelpers.WriteUsersFile(t, "carol:"+string(hash))
	store := chat.NewFileCredentialStore(path)

	assert.True(t, store.Verify("carol", "hunter2"))
	assert.False(t, store.Verify("carol", "hunter3"))
}

func TestHashPasswordIsDeterministicHex(t *testing.T) {
	first := chat.HashPassword("testPassword")
	second := chat.HashPassword("testPassword")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]+$", first)
	assert.NotEqual(t, first, chat.HashPassword("otherPassword"))
}
