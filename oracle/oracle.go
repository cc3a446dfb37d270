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

package oracle

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gitversion.dev/gitversion/height"
	"gitversion.dev/gitversion/internal/gitstore"
	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/pathfilter"
	"gitversion.dev/gitversion/version"
)

// unixToDotNetTicksOffset is the number of 100-nanosecond .NET ticks
// between the .NET epoch (0001-01-01) and the Unix epoch (1970-01-01),
// used to render GitCommitDateTicks in the same unit a consumer expecting
// a .NET DateTime.Ticks value would.
const unixToDotNetTicksOffset = 621355968000000000

// Output is the oracle's result: the full set of version renderings and
// commit metadata a caller can ask for in one shot.
type Output struct {
	Version                      string            `json:"version" yaml:"version"`
	AssemblyVersion              string            `json:"assemblyVersion" yaml:"assemblyVersion"`
	AssemblyFileVersion          string            `json:"assemblyFileVersion" yaml:"assemblyFileVersion"`
	AssemblyInformationalVersion string            `json:"assemblyInformationalVersion" yaml:"assemblyInformationalVersion"`
	SimpleVersion                string            `json:"simpleVersion" yaml:"simpleVersion"`
	MajorMinorVersion            string            `json:"majorMinorVersion" yaml:"majorMinorVersion"`
	BuildNumber                  int               `json:"buildNumber" yaml:"buildNumber"`
	VersionHeight                int               `json:"versionHeight" yaml:"versionHeight"`
	VersionHeightOffset          int               `json:"versionHeightOffset" yaml:"versionHeightOffset"`
	PrereleaseVersion            string            `json:"prereleaseVersion" yaml:"prereleaseVersion"`
	BuildMetadataFragment        string            `json:"buildMetadataFragment" yaml:"buildMetadataFragment"`
	SemVer1                      string            `json:"semVer1" yaml:"semVer1"`
	SemVer2                      string            `json:"semVer2" yaml:"semVer2"`
	NuGetPackageVersion          string            `json:"nuGetPackageVersion" yaml:"nuGetPackageVersion"`
	NpmPackageVersion            string            `json:"npmPackageVersion" yaml:"npmPackageVersion"`
	CloudBuildNumber             string            `json:"cloudBuildNumber,omitempty" yaml:"cloudBuildNumber,omitempty"`
	CloudBuildAllVars            map[string]string `json:"cloudBuildAllVars,omitempty" yaml:"cloudBuildAllVars,omitempty"`
	CloudBuildVersionVars        map[string]string `json:"cloudBuildVersionVars,omitempty" yaml:"cloudBuildVersionVars,omitempty"`
	GitCommitId                  string            `json:"gitCommitId" yaml:"gitCommitId"`
	GitCommitIdShort             string            `json:"gitCommitIdShort" yaml:"gitCommitIdShort"`
	GitCommitDateTicks           int64             `json:"gitCommitDateTicks" yaml:"gitCommitDateTicks"`
	PublicRelease                bool              `json:"publicRelease" yaml:"publicRelease"`
	VersionFileFound             bool              `json:"versionFileFound" yaml:"versionFileFound"`
}

// Oracle wraps one opened repository and computes version outputs against
// it. Its Close releases every pack file and alternate the underlying
// store opened.
type Oracle struct {
	repo *gitstore.Repository
}

// Open locates and opens the repository containing projectDir.
func Open(projectDir string) (*Oracle, error) {
	repo, err := gitstore.Open(projectDir)
	if err != nil {
		return nil, err
	}
	return &Oracle{repo: repo}, nil
}

// Close releases the underlying repository's resources.
func (o *Oracle) Close() error {
	return o.repo.Close()
}

// Options controls one Run/RunForProject invocation. The only inputs a
// caller outside the core may supply are a committish, cloud-build hints,
// and two overrides: a forced public-release flag and a version-height
// offset adjustment.
type Options struct {
	// Committish selects the commit to compute the version at; "HEAD" if
	// empty.
	Committish string

	// Hints optionally supplies CI-derived branch/tag/commit context; the
	// oracle prefers it over repository state when present and applicable.
	Hints CloudBuildHints

	// PublicReleaseOverride, if non-nil, replaces the publicReleaseRefSpec
	// match result entirely.
	PublicReleaseOverride *bool

	// VersionHeightOffsetOverride, if non-nil, replaces the descriptor's
	// own effective versionHeightOffset.
	VersionHeightOffsetOverride *int
}

// RunForProject computes the version Output for projectDir (an absolute
// filesystem path) in one shot, opening and closing the repository it
// lives in.
//
// When projectDir names no repository at all, it returns a "zero" Output
// (VersionFileFound false, every numeric field zero) rather than an error,
// since callers frequently invoke the tool outside any Git repository.
func RunForProject(projectDir string, opts Options) (Output, error) {
	o, err := Open(projectDir)
	if err != nil {
		if _, ok := err.(*modelerr.NotARepositoryError); ok {
			return Output{}, nil
		}
		return Output{}, err
	}
	defer o.Close()
	return o.Run(projectDir, opts)
}

// Run is the per-opened-repository counterpart of RunForProject.
func (o *Oracle) Run(projectDir string, opts Options) (Output, error) {
	committish := opts.Committish
	if committish == "" {
		committish = "HEAD"
	}

	relProjectDir, err := o.relativeProjectDir(projectDir)
	if err != nil {
		return Output{}, err
	}

	hints := opts.Hints

	var commitID objectid.ID
	if hints != nil && hints.IsApplicable() && hints.GitCommitId() != "" {
		commitID, err = objectid.Parse(hints.GitCommitId())
		if err != nil {
			return Output{}, err
		}
	} else {
		commitID, err = o.repo.ResolveCommittish(committish)
		if err != nil {
			return Output{}, err
		}
	}

	resolver := version.NewResolver(o.repo)
	descriptor, found, err := resolver.ResolveAtCommit(commitID, relProjectDir)
	if err != nil {
		return Output{}, err
	}
	if !found {
		return Output{VersionFileFound: false}, nil
	}

	if opts.VersionHeightOffsetOverride != nil {
		descriptor = descriptor.Clone()
		descriptor.VersionHeightOffset = *opts.VersionHeightOffsetOverride
		descriptor.LegacyBuildNumberOffset = nil
	}

	filters := pathfilter.Compile(descriptor.PathFilters, relProjectDir, o.repo.IgnoreCase())
	walker := height.NewWalker(o.repo, resolver, relProjectDir, filters, descriptor.AssemblyPrecision())
	h, err := walker.Height(commitID)
	if err != nil {
		return Output{}, err
	}

	publicRelease := o.isPublicRelease(descriptor, hints)
	if opts.PublicReleaseOverride != nil {
		publicRelease = *opts.PublicReleaseOverride
	}

	return o.assemble(descriptor, commitID, h, publicRelease)
}

func (o *Oracle) relativeProjectDir(projectDir string) (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(o.repo.WorkDir(), abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return strings.TrimPrefix(rel, "/"), nil
}

// isPublicRelease matches the building ref (from hints if supplied, else
// the repository's current branch) against the descriptor's
// publicReleaseRefSpec patterns.
func (o *Oracle) isPublicRelease(d *version.Descriptor, hints CloudBuildHints) bool {
	var ref string
	if hints != nil && hints.IsApplicable() {
		if hints.IsPullRequest() {
			return false
		}
		if b := hints.BuildingBranch(); b != "" {
			ref = b
		} else {
			ref = hints.BuildingTag()
		}
	} else if name, ok, err := o.repo.HeadRefName(); err == nil && ok {
		ref = name
	}

	if ref == "" {
		return false
	}
	for _, pattern := range d.PublicReleaseRefSpec {
		if re, err := regexp.Compile(pattern); err == nil && re.MatchString(ref) {
			return true
		}
	}
	return false
}

// assemble composes every Output field from the resolved descriptor,
// commit, and height.
func (o *Oracle) assemble(d *version.Descriptor, commitID objectid.ID, h int, publicRelease bool) (Output, error) {
	offset := d.EffectiveVersionHeightOffset()
	position := d.VersionHeightPosition()
	commitPosition := d.GitCommitIDPosition()

	major, minor, build, revision := d.Version.Major, d.Version.Minor, d.Version.Build, d.Version.Revision

	switch position {
	case version.PositionBuild:
		build = h + offset
	case version.PositionRevision:
		revision = h + offset
	}
	if err := checkOverflow(position, h, offset, build, revision); err != nil {
		return Output{}, err
	}
	if err := version.ValidateCore(major, minor, build); err != nil {
		return Output{}, &modelerr.MalformedObjectError{Reason: "assembled version core failed validation: " + err.Error()}
	}

	if commitPosition == version.PositionRevision {
		revision = int(commitID.Truncate16())
		if revision > version.MaxVersionComponent {
			revision = version.MaxVersionComponent
		}
	}

	shortID, err := o.shortCommitID(d, commitID)
	if err != nil {
		return Output{}, err
	}

	commit, err := o.repo.GetCommit(commitID)
	if err != nil {
		return Output{}, err
	}
	ticks := unixToDotNetTicksOffset + commit.Committer.Seconds*10000000

	resolved := d.Version.WithHeight(h)

	semVer2 := assembleSemVer2(major, minor, build, resolved.Prerelease, resolved.Metadata, shortID, publicRelease)
	if !version.SanityCheckSemVer2(fmt.Sprintf("%d.%d.%d%s", major, minor, build, semVer2PrereleaseSuffix(resolved.Prerelease))) {
		return Output{}, &modelerr.MalformedObjectError{Reason: "assembled SemVer2 string failed validation: " + semVer2}
	}
	semVer1 := assembleSemVer1(major, minor, build, resolved.Prerelease, resolved.Metadata, shortID, publicRelease, d.SemVer1NumericIdentifierPadding)

	assemblyCore := truncateToPrecision(major, minor, build, revision, d.AssemblyPrecision())

	out := Output{
		Version:                      fmt.Sprintf("%d.%d.%d.%d", major, minor, build, revision),
		AssemblyVersion:              assemblyCore,
		AssemblyFileVersion:          fmt.Sprintf("%d.%d.%d.%d", major, minor, build, revision),
		AssemblyInformationalVersion: semVer2,
		SimpleVersion:                fmt.Sprintf("%d.%d.%d", major, minor, build),
		MajorMinorVersion:            fmt.Sprintf("%d.%d", major, minor),
		BuildNumber:                  build,
		VersionHeight:                h,
		VersionHeightOffset:          offset,
		PrereleaseVersion:            resolved.Prerelease,
		BuildMetadataFragment:        resolved.Metadata,
		SemVer1:                      semVer1,
		SemVer2:                      semVer2,
		GitCommitId:                  commitID.String(),
		GitCommitIdShort:             shortID,
		GitCommitDateTicks:           ticks,
		PublicRelease:                publicRelease,
		VersionFileFound:             true,
	}

	out.NuGetPackageVersion = nuGetVariant(d, out)
	out.NpmPackageVersion = npmVariant(out)

	return out, nil
}

func checkOverflow(position version.Position, height, offset, build, revision int) error {
	if position == version.PositionBuild && build > version.MaxVersionComponent {
		return &modelerr.HeightOverflowError{Position: string(position), Height: height, Offset: offset}
	}
	if position == version.PositionRevision && revision > version.MaxVersionComponent {
		return &modelerr.HeightOverflowError{Position: string(position), Height: height, Offset: offset}
	}
	return nil
}

func truncateToPrecision(major, minor, build, revision int, precision version.Precision) string {
	switch precision {
	case version.PrecisionMajor:
		return strconv.Itoa(major)
	case version.PrecisionMinor:
		return fmt.Sprintf("%d.%d", major, minor)
	case version.PrecisionBuild:
		return fmt.Sprintf("%d.%d.%d", major, minor, build)
	default:
		return fmt.Sprintf("%d.%d.%d.%d", major, minor, build, revision)
	}
}

func semVer2PrereleaseSuffix(prerelease string) string {
	if prerelease == "" {
		return ""
	}
	return "-" + prerelease
}

func assembleSemVer2(major, minor, build int, prerelease, metadata, shortID string, publicRelease bool) string {
	s := fmt.Sprintf("%d.%d.%d", major, minor, build)
	if prerelease != "" {
		s += "-" + prerelease
	}
	var metaParts []string
	if !publicRelease && shortID != "" {
		metaParts = append(metaParts, "g"+shortID)
	}
	if metadata != "" {
		metaParts = append(metaParts, metadata)
	}
	if len(metaParts) > 0 {
		s += "+" + strings.Join(metaParts, ".")
	}
	return s
}

func assembleSemVer1(major, minor, build int, prerelease, metadata, shortID string, publicRelease bool, padding int) string {
	s := fmt.Sprintf("%d.%d.%d", major, minor, build)

	var pre []string
	if prerelease != "" {
		pre = append(pre, padSemVer1Identifiers(prerelease, padding)...)
	}
	if metadata != "" {
		pre = append(pre, padSemVer1Identifiers(metadata, padding)...)
	}
	if !publicRelease && shortID != "" {
		pre = append(pre, "g"+shortID)
	}
	if len(pre) > 0 {
		s += "-" + strings.Join(pre, "-")
	}
	return s
}

// padSemVer1Identifiers splits a dot-separated identifier fragment and
// zero-pads any purely-numeric identifier to width, since SemVer 1.0
// prerelease identifiers have no numeric/alphanumeric precedence rule the
// way SemVer 2.0 does.
func padSemVer1Identifiers(fragment string, width int) []string {
	parts := strings.Split(fragment, ".")
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			parts[i] = fmt.Sprintf("%0*d", width, n)
		}
	}
	return parts
}

// shortCommitID computes the short commit-id string per the descriptor's
// fixed-length or auto-minimum policy.
func (o *Oracle) shortCommitID(d *version.Descriptor, id objectid.ID) (string, error) {
	length := d.GitCommitIDShortFixedLength
	if d.GitCommitIDShortAutoMinimum > 0 {
		for l := d.GitCommitIDShortAutoMinimum; l <= objectid.HexSize; l++ {
			if _, ok := o.repo.ResolvePrefix(id.String()[:l]); ok {
				length = l
				break
			}
		}
	}
	if length <= 0 || length > objectid.HexSize {
		length = objectid.HexSize
	}
	return id.String()[:length], nil
}

// nuGetVariant picks SemVer1 or SemVer2 rendering per the descriptor's
// nugetPackageVersion.semVer setting; NuGet's older package feeds cannot
// parse a SemVer2 build-metadata suffix, so semVer:1 (the default) selects
// the SemVer1 rendering instead.
func nuGetVariant(d *version.Descriptor, out Output) string {
	if d.NuGetPackageVersion != nil && d.NuGetPackageVersion.SemVer == 2 {
		return out.SemVer2
	}
	return out.SemVer1
}

func npmVariant(out Output) string {
	// npm's semver implementation accepts the same SemVer2 grammar; numeric
	// prerelease identifiers are compared, not reformatted, so the SemVer2
	// rendering is reused as-is.
	return out.SemVer2
}
