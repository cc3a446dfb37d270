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

package version

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	bsemver "github.com/blang/semver/v4"
	xsemver "golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"gitversion.dev/gitversion/internal/modelerr"
)

// HeightPlaceholder is the token a descriptor's version may embed in its
// prerelease or build-metadata segment; the oracle substitutes it with the
// computed version height at assembly time.
const HeightPlaceholder = "{height}"

// MaxVersionComponent is the largest value a Build or Revision component
// may take; 0xFFFF is reserved (historical Windows PE-header constraint).
const MaxVersionComponent = 0xFFFE

var semverPattern = regexp.MustCompile(
	`^(\d+)\.(\d+)(?:\.(\d+)(?:\.(\d+))?)?(?:-([0-9A-Za-z.{}-]+))?(?:\+([0-9A-Za-z.{}-]+))?$`,
)

// SemVer is a version.json "version" value: SemVer 2.0.0 with 2 to 4
// numeric components and the {height} placeholder extension in its
// prerelease or metadata segment.
type SemVer struct {
	Major, Minor, Build, Revision int
	HasBuild, HasRevision         bool
	Prerelease, Metadata          string
}

// ParseSemVer parses a descriptor's "version" string.
func ParseSemVer(s string) (SemVer, error) {
	s = strings.TrimPrefix(s, "v")
	m := semverPattern.FindStringSubmatch(s)
	if m == nil {
		return SemVer{}, fmt.Errorf("invalid version %q", s)
	}

	var sv SemVer
	sv.Major = atoiMust(m[1])
	sv.Minor = atoiMust(m[2])
	if m[3] != "" {
		sv.HasBuild = true
		sv.Build = atoiMust(m[3])
	}
	if m[4] != "" {
		sv.HasRevision = true
		sv.Revision = atoiMust(m[4])
	}
	sv.Prerelease = m[5]
	sv.Metadata = m[6]

	if err := sv.Validate(); err != nil {
		return SemVer{}, err
	}
	return sv, nil
}

func atoiMust(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// NumericComponentCount reports how many numeric components (2, 3, or 4)
// the descriptor's version string specified, which drives
// Descriptor.VersionHeightPosition.
func (s SemVer) NumericComponentCount() int {
	switch {
	case s.HasRevision:
		return 4
	case s.HasBuild:
		return 3
	default:
		return 2
	}
}

// HasHeightPlaceholder reports whether the {height} token appears in
// either the prerelease or the metadata segment.
func (s SemVer) HasHeightPlaceholder() bool {
	return strings.Contains(s.Prerelease, HeightPlaceholder) || strings.Contains(s.Metadata, HeightPlaceholder)
}

// IsZero reports whether s is the unset zero value.
func (s SemVer) IsZero() bool {
	return s.Major == 0 && s.Minor == 0 && !s.HasBuild && !s.HasRevision && s.Prerelease == "" && s.Metadata == ""
}

// WithHeight substitutes the {height} placeholder (if present) in both the
// prerelease and metadata segments with the decimal height value.
func (s SemVer) WithHeight(height int) SemVer {
	out := s
	h := strconv.Itoa(height)
	out.Prerelease = strings.ReplaceAll(out.Prerelease, HeightPlaceholder, h)
	out.Metadata = strings.ReplaceAll(out.Metadata, HeightPlaceholder, h)
	return out
}

// String renders s in "Major.Minor[.Build[.Revision]][-Prerelease][+Metadata]"
// form.
func (s SemVer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", s.Major, s.Minor)
	if s.HasBuild {
		fmt.Fprintf(&b, ".%d", s.Build)
	}
	if s.HasRevision {
		fmt.Fprintf(&b, ".%d", s.Revision)
	}
	if s.Prerelease != "" {
		b.WriteByte('-')
		b.WriteString(s.Prerelease)
	}
	if s.Metadata != "" {
		b.WriteByte('+')
		b.WriteString(s.Metadata)
	}
	return b.String()
}

// Validate checks that the numeric components are in range: Major and
// Minor non-negative, Build and Revision (when present) within
// [0, MaxVersionComponent]. The prerelease and metadata identifiers are not
// checked here.
func (s SemVer) Validate() error {
	if s.Major < 0 || s.Minor < 0 {
		return fmt.Errorf("version components must be non-negative")
	}
	if s.HasBuild && (s.Build < 0 || s.Build > MaxVersionComponent) {
		return fmt.Errorf("build component %d out of range [0, %d]", s.Build, MaxVersionComponent)
	}
	if s.HasRevision && (s.Revision < 0 || s.Revision > MaxVersionComponent) {
		return fmt.Errorf("revision component %d out of range [0, %d]", s.Revision, MaxVersionComponent)
	}
	return nil
}

// CompareCore compares the numeric core (Major, Minor, Build, Revision,
// unset components treated as 0) of s against other. Its ordering is
// cross-checked in tests against golang.org/x/mod/semver on a 3-component
// rendering (see xmodCompare; x/mod/semver only understands
// MAJOR.MINOR.PATCH).
func (s SemVer) CompareCore(other SemVer) int {
	if c := compareInt(s.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(s.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(s.Build, other.Build); c != 0 {
		return c
	}
	return compareInt(s.Revision, other.Revision)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// xmodCompare cross-checks two 3-component core versions via
// golang.org/x/mod/semver.Compare, used only in tests as a second opinion
// on CompareCore's ordering.
func xmodCompare(a, b SemVer) int {
	render := func(s SemVer) string {
		return fmt.Sprintf("v%d.%d.%d", s.Major, s.Minor, s.Build)
	}
	return xsemver.Compare(render(a), render(b))
}

// WillVersionChangeResetVersionHeight reports whether moving from oldV to
// newV, compared at the given precision, would reset the version height:
// the numeric components up to and including precision differ, the
// height-position has moved, or (at PrecisionBuild/PrecisionRevision with
// no numeric change) the prerelease text differs.
func WillVersionChangeResetVersionHeight(oldV, newV SemVer, precision Precision) bool {
	if oldV.Major != newV.Major || oldV.Minor != newV.Minor {
		return true
	}
	oldD, newD := Descriptor{Version: oldV}, Descriptor{Version: newV}
	if oldD.VersionHeightPosition() != newD.VersionHeightPosition() {
		return true
	}
	switch precision {
	case PrecisionMajor, PrecisionMinor:
		return false
	}
	if oldV.HasBuild != newV.HasBuild || oldV.Build != newV.Build {
		return true
	}
	if precision == PrecisionBuild {
		return oldV.Prerelease != newV.Prerelease
	}
	if oldV.HasRevision != newV.HasRevision || oldV.Revision != newV.Revision {
		return true
	}
	return oldV.Prerelease != newV.Prerelease
}

// SanityCheckSemVer2 validates an assembled SemVer2 string with
// golang.org/x/mod/semver before the oracle returns it. The core must have
// all three MAJOR.MINOR.PATCH components; x/mod's vMAJOR and vMAJOR.MINOR
// shorthands are rejected.
func SanityCheckSemVer2(s string) bool {
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2 && xsemver.IsValid("v"+s)
}

// ValidateCore parses a fully-resolved (no {height} left) core
// "Major.Minor.Build" string through github.com/blang/semver/v4, used by
// the oracle to validate the core before composing prerelease/metadata by
// hand (blang/semver does not understand the {height} grammar so it is
// never handed the raw descriptor string).
func ValidateCore(major, minor, build int) error {
	_, err := bsemver.Parse(fmt.Sprintf("%d.%d.%d", major, minor, build))
	return err
}

// MarshalJSON renders s as a JSON string.
func (s SemVer) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses s from a JSON string.
func (s *SemVer) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return &modelerr.MalformedDescriptorError{Path: "version", Reason: err.Error()}
	}
	parsed, err := ParseSemVer(str)
	if err != nil {
		return &modelerr.MalformedDescriptorError{Path: "version", Reason: err.Error()}
	}
	*s = parsed
	return nil
}

// MarshalYAML renders s as a YAML scalar string.
func (s SemVer) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML parses s from a YAML scalar string.
func (s *SemVer) UnmarshalYAML(node *yaml.Node) error {
	var str string
	if err := node.Decode(&str); err != nil {
		return &modelerr.MalformedDescriptorError{Path: "version", Reason: err.Error()}
	}
	parsed, err := ParseSemVer(str)
	if err != nil {
		return &modelerr.MalformedDescriptorError{Path: "version", Reason: err.Error()}
	}
	*s = parsed
	return nil
}
