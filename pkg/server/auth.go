package server

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore verifies a username/password pair against some record
// store. The server treats it as an external collaborator; the session state
// machine only sees pass/fail.
type CredentialStore interface {
	Verify(username, password string) (bool, error)
}

// FileCredentials verifies against a whitespace-separated two-column file,
// one "username secret" pair per line. The secret is either a bcrypt hash
// (recognized by its "$2" prefix) or a plaintext password, compared in
// constant time. The file is re-read on every call so edits take effect
// without a restart.
type FileCredentials struct {
	path string
}

func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

func (c *FileCredentials) Verify(username, password string) (bool, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return false, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != username {
			continue
		}

		secret := fields[1]
		if strings.HasPrefix(secret, "$2") {
			return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil, nil
		}
		return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read credentials file: %w", err)
	}

	return false, nil
}
