// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameBytes is the ceiling for a generated header filename, kept
// under common filesystem limits with room for the ".h" extension.
const maxFilenameBytes = 240

// hashSuffixLen is how many hex characters of the name hash a truncated
// filename keeps.
const hashSuffixLen = 8

// ValidateName rejects record names carrying corrupted metadata: a
// Unicode replacement character or control characters would otherwise
// leak into filenames and header text.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty record name")
	}
	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) {
			return fmt.Errorf("record name %q contains corrupted metadata", name)
		}
	}
	return nil
}

// Filename derives a filesystem-safe filename from a record name. Names
// over the byte ceiling are truncated and suffixed with a short stable
// hash of the full name so distinct long names cannot collide.
func Filename(name, ext string) string {
	safe := strings.ReplaceAll(name, "/", "_")
	safe = strings.ReplaceAll(safe, ":", "_")

	limit := maxFilenameBytes - len(ext)
	if len(safe) <= limit {
		return safe + ext
	}

	sum := sha256.Sum256([]byte(name))
	suffix := "-" + hex.EncodeToString(sum[:])[:hashSuffixLen]

	cut := limit - len(suffix)
	for cut > 0 && !utf8.RuneStart(safe[cut]) {
		cut--
	}
	return safe[:cut] + suffix + ext
}
