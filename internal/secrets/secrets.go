// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Known key files: pushgateway-username, pushgateway-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Key files read by spectrace.
const (
	PushgatewayUsername = "pushgateway-username"
	PushgatewayPassword = "pushgateway-password"
)

// Secrets maps key file names to their trimmed contents.
type Secrets map[string]string

// Get returns the secret for key, or "" when absent.
func (s Secrets) Get(key string) string { return s[key] }

// BasicAuth returns the Pushgateway credentials. ok is false unless both
// the username and password are present.
func (s Secrets) BasicAuth() (user, pass string, ok bool) {
	user, pass = s[PushgatewayUsername], s[PushgatewayPassword]
	return user, pass, user != "" && pass != ""
}

// Load reads all files in dir. A missing directory or missing files are not
// errors; Load returns an empty map. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			s[name] = value
		}
	}

	return s, nil
}
