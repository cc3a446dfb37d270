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
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"gitversion.dev/gitversion/internal/gitobject"
	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
)

// repository is the slice of gitstore.Repository the resolver needs; kept
// narrow so this package does not import gitstore (which would create an
// import cycle once gitstore grows a convenience wrapper around version).
type repository interface {
	Get(id objectid.ID) (packfile.ObjectKind, []byte, error)
	GetCommit(id objectid.ID) (gitobject.Commit, error)
	GetTree(id objectid.ID) (*gitobject.Tree, error)
}

// Resolver resolves version descriptors at a commit or in the working
// tree, caching parsed descriptors by blob id so an unchanged tree across
// many commits is only parsed once per walk.
type Resolver struct {
	repo  repository
	cache map[objectid.ID]*Descriptor
}

// NewResolver constructs a Resolver reading objects through repo.
func NewResolver(repo repository) *Resolver {
	return &Resolver{repo: repo, cache: make(map[objectid.ID]*Descriptor)}
}

// ResolveAtCommit resolves the version descriptor visible to projectDir
// (repo-relative, forward-slash, no leading slash) at commitID, ascending
// through parent directories and following any "inherit" chain. found is
// false when no version.json/version.txt exists anywhere from projectDir
// up to the repository root.
func (r *Resolver) ResolveAtCommit(commitID objectid.ID, projectDir string) (*Descriptor, bool, error) {
	commit, err := r.repo.GetCommit(commitID)
	if err != nil {
		return nil, false, err
	}
	return r.resolveDir(commit.Tree, normalizeDir(projectDir), commitID.String())
}

func normalizeDir(dir string) string {
	return strings.Trim(filepath.ToSlash(dir), "/")
}

func parentDir(dir string) string {
	if dir == "" {
		return ""
	}
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		return dir[:i]
	}
	return ""
}

func (r *Resolver) resolveDir(rootTree objectid.ID, dir string, source string) (*Descriptor, bool, error) {
	for {
		blobID, isJSON, found, err := r.findDescriptorBlob(rootTree, dir)
		if err != nil {
			return nil, false, err
		}
		if found {
			d, err := r.resolveBlob(blobID, isJSON, rootTree, dir, source)
			if err != nil {
				return nil, false, err
			}
			return d, true, nil
		}
		if dir == "" {
			return nil, false, nil
		}
		dir = parentDir(dir)
	}
}

func (r *Resolver) resolveBlob(blobID objectid.ID, isJSON bool, rootTree objectid.ID, dir, source string) (*Descriptor, error) {
	if cached, ok := r.cache[blobID]; ok {
		return cached, nil
	}

	_, data, err := r.repo.Get(blobID)
	if err != nil {
		return nil, err
	}

	var d *Descriptor
	if isJSON {
		d, err = ParseDescriptorJSON(data, source)
	} else {
		d, err = parseLegacyVersionTxt(data, source)
	}
	if err != nil {
		return nil, err
	}

	if d.Inherit {
		if dir == "" {
			return nil, &modelerr.InheritanceUnresolvedError{Dir: "<repository root>"}
		}
		parent, err := r.resolveInheritAncestor(rootTree, parentDir(dir), source)
		if err != nil {
			return nil, err
		}
		// parent has already had ApplyDefaults run on it (by this same
		// path, recursively), so merging child's unset fields over it
		// carries the default forward without child ever claiming one.
		d = mergeDescriptors(parent, d)
	} else if isJSON {
		d.ApplyDefaults()
	}

	d.Freeze()
	r.cache[blobID] = d
	return d, nil
}

// resolveInheritAncestor walks dir and its ancestors looking for the
// descriptor an "inherit: true" child merges over. A malformed descriptor
// at one ancestor does not abort the search: it is recorded and the walk
// continues further up, on the theory that a single bad intermediate
// version.json should not block inheritance from a perfectly good
// grandparent. All such soft failures are aggregated with
// go.uber.org/multierr and returned only if no ancestor ever resolves
// cleanly.
func (r *Resolver) resolveInheritAncestor(rootTree objectid.ID, dir, source string) (*Descriptor, error) {
	var softErrs error

	for {
		blobID, isJSON, found, err := r.findDescriptorBlob(rootTree, dir)
		if err != nil {
			return nil, err
		}
		if found {
			d, err := r.resolveBlob(blobID, isJSON, rootTree, dir, source)
			if err != nil {
				if _, ok := err.(*modelerr.MalformedDescriptorError); ok {
					softErrs = multierr.Append(softErrs, err)
					if dir == "" {
						break
					}
					dir = parentDir(dir)
					continue
				}
				return nil, err
			}
			return d, nil
		}
		if dir == "" {
			break
		}
		dir = parentDir(dir)
	}

	if softErrs != nil {
		return nil, multierr.Append(&modelerr.InheritanceUnresolvedError{Dir: dir}, softErrs)
	}
	return nil, &modelerr.InheritanceUnresolvedError{Dir: dir}
}

// findDescriptorBlob looks for "version.json" (preferred) or "version.txt"
// (legacy fallback) directly inside dir of rootTree.
func (r *Resolver) findDescriptorBlob(rootTree objectid.ID, dir string) (blobID objectid.ID, isJSON bool, found bool, err error) {
	tree, err := r.navigateTree(rootTree, dir)
	if err != nil {
		return objectid.ID{}, false, false, err
	}
	if tree == nil {
		return objectid.ID{}, false, false, nil
	}

	if e, ok := tree.ByName("version.json"); ok && e.Kind != gitobject.EntryTree {
		return e.Target, true, true, nil
	}
	if e, ok := tree.ByName("version.txt"); ok && e.Kind != gitobject.EntryTree {
		return e.Target, false, true, nil
	}
	return objectid.ID{}, false, false, nil
}

// navigateTree descends from rootTree along dir's path segments, returning
// nil (not an error) if any segment does not exist or is not a subtree.
func (r *Resolver) navigateTree(rootTree objectid.ID, dir string) (*gitobject.Tree, error) {
	tree, err := r.repo.GetTree(rootTree)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return tree, nil
	}
	for _, segment := range strings.Split(dir, "/") {
		entry, ok := tree.ByName(segment)
		if !ok || entry.Kind != gitobject.EntryTree {
			return nil, nil
		}
		tree, err = r.repo.GetTree(entry.Target)
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// ResolveAtWorkingTree resolves the descriptor visible to projectDir using
// direct filesystem reads, ascending toward repoRoot with the same rule as
// ResolveAtCommit. Both paths must be absolute, native-OS paths.
func ResolveAtWorkingTree(projectDir, repoRoot string) (*Descriptor, bool, error) {
	dir := filepath.Clean(projectDir)
	root := filepath.Clean(repoRoot)

	for {
		d, found, err := resolveWorkingTreeDir(dir)
		if err != nil {
			return nil, false, err
		}
		if found {
			return d, true, nil
		}
		if dir == root {
			return nil, false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

func resolveWorkingTreeDir(dir string) (*Descriptor, bool, error) {
	jsonPath := filepath.Join(dir, "version.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		d, err := ParseDescriptorJSON(data, "working tree")
		if err != nil {
			return nil, false, err
		}
		if d.Inherit {
			parent, found, err := resolveWorkingTreeDir(filepath.Dir(dir))
			if err != nil {
				return nil, false, err
			}
			if !found {
				return nil, false, &modelerr.InheritanceUnresolvedError{Dir: dir}
			}
			// parent already carries its own defaults (applied below on
			// every non-inheriting return from this function), so the
			// merge only needs to layer the child's explicit fields on.
			d = mergeDescriptors(parent, d)
		} else {
			d.ApplyDefaults()
		}
		d.Freeze()
		return d, true, nil
	}

	txtPath := filepath.Join(dir, "version.txt")
	if data, err := os.ReadFile(txtPath); err == nil {
		d, err := parseLegacyVersionTxt(data, "working tree")
		if err != nil {
			return nil, false, err
		}
		d.Freeze()
		return d, true, nil
	}

	return nil, false, nil
}

// parseLegacyVersionTxt parses the two-line legacy format: a
// "MAJOR.MINOR[-PRERELEASE]" line, then an optional integer build-number
// offset line.
func parseLegacyVersionTxt(data []byte, source string) (*Descriptor, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, &modelerr.MalformedDescriptorError{Source: source, Path: "version.txt", Reason: "empty file"}
	}

	sv, err := ParseSemVer(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, &modelerr.MalformedDescriptorError{Source: source, Path: "version.txt", Reason: err.Error()}
	}

	d := &Descriptor{Version: sv}
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "" {
		offset, err := strconv.Atoi(strings.TrimSpace(lines[1]))
		if err != nil {
			return nil, &modelerr.MalformedDescriptorError{Source: source, Path: "version.txt", Reason: "invalid build-number offset: " + err.Error()}
		}
		d.VersionHeightOffset = offset
	}
	d.ApplyDefaults()
	return d, nil
}
