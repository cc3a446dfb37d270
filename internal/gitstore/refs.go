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

package gitstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
)

// ResolveCommittish resolves a committish (a full ref name, "HEAD", a short
// or full hex object id, or anything else Git would accept as a single
// revision) to the id of the commit it names. A tag object in the chain is
// transparently peeled to the commit it annotates.
func (r *Repository) ResolveCommittish(committish string) (objectid.ID, error) {
	id, err := r.resolveRefOrID(committish)
	if err != nil {
		return objectid.ID{}, err
	}
	return r.peelToCommit(id)
}

// Head resolves the special ref HEAD to the commit id it currently points
// at.
func (r *Repository) Head() (objectid.ID, error) {
	return r.ResolveCommittish("HEAD")
}

// HeadRefName returns the ref HEAD currently points to symbolically (e.g.
// "refs/heads/main"), without resolving it further. ok is false when HEAD
// is detached (holds a bare object id rather than a "ref:" pointer).
func (r *Repository) HeadRefName() (name string, ok bool, err error) {
	value, isSymbolic, err := r.readOneRef("HEAD")
	if err != nil {
		return "", false, err
	}
	return value, isSymbolic, nil
}

func (r *Repository) resolveRefOrID(name string) (objectid.ID, error) {
	if id, err := objectid.Parse(name); err == nil {
		return id, nil
	}
	if len(name) >= 4 && len(name) < objectid.HexSize {
		if id, ok := r.ResolvePrefix(name); ok {
			return id, nil
		}
	}

	seen := make(map[string]bool)
	current := name
	for {
		if seen[current] {
			return objectid.ID{}, &modelerr.MalformedDescriptorError{Source: "refs", Path: current, Reason: "cyclic symbolic ref"}
		}
		seen[current] = true

		target, isSymbolic, err := r.readOneRef(current)
		if err != nil {
			return objectid.ID{}, err
		}
		if !isSymbolic {
			return objectid.Parse(target)
		}
		current = target
	}
}

// readOneRef reads exactly one layer of ref resolution for name: HEAD and
// loose refs/* files may contain either "ref: <other>" (symbolic) or a bare
// hex id; packed-refs lines are always a bare hex id.
func (r *Repository) readOneRef(name string) (value string, isSymbolic bool, err error) {
	for _, candidate := range refFileCandidates(name) {
		path := filepath.Join(r.commonDir, candidate)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("gitversion: reading %s: %w", path, err)
		}
		line := strings.TrimSpace(string(data))
		if strings.HasPrefix(line, "ref:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ref:")), true, nil
		}
		return line, false, nil
	}

	if id, ok, err := r.readPackedRef(name); err != nil {
		return "", false, err
	} else if ok {
		return id, false, nil
	}

	return "", false, &modelerr.MalformedDescriptorError{Source: "refs", Path: name, Reason: "unresolvable ref"}
}

// refFileCandidates lists the loose-ref file paths (relative to commonDir)
// that name could resolve against directly, in priority order.
func refFileCandidates(name string) []string {
	if name == "HEAD" {
		return []string{"HEAD"}
	}
	if strings.HasPrefix(name, "refs/") {
		return []string{name}
	}
	return []string{
		"refs/heads/" + name,
		"refs/tags/" + name,
		"refs/remotes/" + name,
		name,
	}
}

// readPackedRef scans commonDir/packed-refs for an entry matching name,
// trying the same candidates as loose refs: name prefixed with
// "refs/heads/", "refs/tags/" and "refs/remotes/", then name as given.
func (r *Repository) readPackedRef(name string) (string, bool, error) {
	f, err := os.Open(filepath.Join(r.commonDir, "packed-refs"))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	candidates := refFileCandidates(name)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		id, refName, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		for _, c := range candidates {
			if refName == c {
				return id, true, nil
			}
		}
	}
	return "", false, scanner.Err()
}

// peelToCommit follows a tag object's "object" header until it reaches a
// non-tag object, which for a well-formed repository is always a commit.
func (r *Repository) peelToCommit(id objectid.ID) (objectid.ID, error) {
	for {
		kind, data, err := r.Get(id)
		if err != nil {
			return objectid.ID{}, err
		}
		if kind == packfile.KindCommit {
			return id, nil
		}
		if kind != packfile.KindTag {
			return objectid.ID{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "expected commit or tag, found " + kind.String()}
		}
		next, err := parseTagObjectHeader(data)
		if err != nil {
			return objectid.ID{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: err.Error()}
		}
		id = next
	}
}

// parseTagObjectHeader extracts the "object <id>" header line from a tag
// object's text body.
func parseTagObjectHeader(data []byte) (objectid.ID, error) {
	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 {
		return objectid.ID{}, fmt.Errorf("empty tag object")
	}
	const prefix = "object "
	if !strings.HasPrefix(lines[0], prefix) {
		return objectid.ID{}, fmt.Errorf("tag object missing object header")
	}
	return objectid.Parse(strings.TrimSpace(strings.TrimPrefix(lines[0], prefix)))
}
