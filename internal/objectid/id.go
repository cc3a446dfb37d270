/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package objectid defines the Git object id value type used throughout the
// gitversion engine: an immutable 20-byte SHA-1 digest, with hex parsing,
// formatting, and the big-endian truncation used to encode a commit's
// identity into a version's revision component.
package objectid

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gitversion.dev/gitversion/internal/modelerr"
	"gopkg.in/yaml.v3"
)

const (
	// Size is the number of raw bytes in a SHA-1 object id.
	Size = 20

	// HexSize is the number of hexadecimal characters in a canonical,
	// fully-expanded object id.
	HexSize = 40

	// ShortLen is the default abbreviated length used for display when no
	// other policy is configured.
	ShortLen = 7
)

// ID is an immutable 20-byte SHA-1 Git object id.
//
// The zero value (all-zero bytes) never identifies a real Git object and is
// used as a sentinel for "no id" in call sites that need one (for example, a
// commit with no parent in that slot).
type ID [Size]byte

// Parse parses a 40-character lowercase-or-uppercase hex string into an ID.
// Surrounding whitespace is trimmed before decoding; case does not affect
// the resulting byte value.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) != HexSize {
		return ID{}, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("object id %q has invalid length %d (want %d)", s, len(s), HexSize),
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("object id %q is not valid hex: %v", s, err),
		}
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// FromBytes copies a 20-byte slice into an ID. It returns an error if the
// slice is not exactly Size bytes long.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return ID{}, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("object id byte slice has length %d (want %d)", len(b), Size),
		}
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// String returns the canonical 40-character lowercase hex representation.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first n hex characters of the id. If n is less than 1 or
// greater than HexSize, ShortLen is used.
func (id ID) Short(n int) string {
	if n < 1 || n > HexSize {
		n = ShortLen
	}
	return id.String()[:n]
}

// IsZero reports whether id is the all-zero sentinel value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Equal reports whether id and other identify the same object.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Less implements a total order over ID values, used for sorted storage and
// binary search (matching the sort order pack indexes store object ids in).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Truncate16 returns the big-endian uint16 formed from the first two bytes
// of the id, used to encode a commit's identity into a version's revision
// component (spec GLOSSARY: "Truncated commit id").
func (id ID) Truncate16() uint16 {
	return uint16(id[0])<<8 | uint16(id[1])
}

// Truncate16LittleEndian returns the little-endian interpretation of the
// first two bytes. Early tooling emitted commit-id revisions this way. New
// versions are always emitted with Truncate16. Nothing in this module
// matches a version back to a commit, so this method has no caller here.
func (id ID) Truncate16LittleEndian() uint16 {
	return uint16(id[1])<<8 | uint16(id[0])
}

// MarshalJSON renders the id as its canonical hex string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses a canonical hex string into the id.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalYAML renders the id as its canonical hex string.
func (id ID) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

// UnmarshalYAML parses a canonical hex string into the id.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
