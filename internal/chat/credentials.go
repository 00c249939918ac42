// Package chat verifies login credentials against the server's user file.
package chat

import (
	"bufio"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore answers whether a username/credential pair is valid. It is
// a pure query with no side effects.
type CredentialStore interface {
	Verify(username, credential string) bool
}

// FileCredentialStore reads "username:credential" records from a text file.
// The file is re-read on every lookup, so edits take effect without a
// restart. Blank lines and lines starting with '#' are skipped; the first
// record for a username wins when duplicates exist.
//
// A credential field is either the literal value the client presents
// (typically a SHA-256 hex digest, see HashPassword) or a bcrypt hash, which
// is verified against the presented value instead of compared byte for byte.
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore returns a store backed by the file at path. The file
// does not need to exist yet; lookups against a missing file fail closed.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Verify reports whether the presented credential matches the stored record
// for username. Any read error is logged and treated as "no match" so the
// server keeps running.
func (s *FileCredentialStore) Verify(username, credential string) bool {
	f, err := os.Open(s.path)
	if err != nil {
		log.Printf("Error reading credential file %s: %v", s.path, err)
		return false
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing credential file %s: %v", s.path, err)
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, CredentialSeparator)
		if len(fields) != 2 {
			continue
		}
		if fields[0] != username {
			continue
		}
		return credentialMatches(fields[1], credential)
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error scanning credential file %s: %v", s.path, err)
	}
	return false
}

func credentialMatches(stored, presented string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func isBcryptHash(credential string) bool {
	return strings.HasPrefix(credential, "$2a$") ||
		strings.HasPrefix(credential, "$2b$") ||
		strings.HasPrefix(credential, "$2y$")
}

// HashPassword returns the lowercase hex SHA-256 digest of password. This is
// the deterministic credential the stock client presents on login and the
// value operators store in the user file for non-bcrypt entries.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
