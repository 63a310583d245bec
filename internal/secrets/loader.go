// Package secrets resolves credentials given inline or through a mounted file.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a source holds neither a value nor a file.
var ErrNotConfigured = errors.New("not configured")

type Source struct {
	// Name is used in error messages, for example "jwt secret".
	Name  string
	Value string
	// File takes precedence over Value when set.
	File string
}

func (s Source) name() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}

// Load returns the trimmed secret. An empty file is an error, not a fallback
// to Value.
func Load(src Source) (string, error) {
	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", src.name(), file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", src.name(), file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("%s is %w", src.name(), ErrNotConfigured)
}

// Configured reports whether Load has anything to read.
func (s Source) Configured() bool {
	return strings.TrimSpace(s.File) != "" || strings.TrimSpace(s.Value) != ""
}
