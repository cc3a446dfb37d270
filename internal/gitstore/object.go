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
	"gitversion.dev/gitversion/internal/gitobject"
	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
)

// Get reconstructs the object identified by id, checking loose storage
// before packs in each object directory, and each object directory in
// alternates-resolution order. It returns *modelerr.MissingObjectError if id
// is not found anywhere in the repository's object database.
func (r *Repository) Get(id objectid.ID) (packfile.ObjectKind, []byte, error) {
	for i, dir := range r.objDirs {
		if kind, data, ok, err := readLoose(dir, id); err != nil {
			return 0, nil, err
		} else if ok {
			return kind, data, nil
		}
		if i >= len(r.stores) {
			continue
		}
		if kind, data, ok, err := r.stores[i].Get(id, r.resolveExternal); err != nil {
			return 0, nil, err
		} else if ok {
			return kind, data, nil
		}
	}
	return 0, nil, &modelerr.MissingObjectError{ID: id.String()}
}

// resolveExternal is the callback a pack's REF_DELTA resolution falls back
// to when a delta base is not present in the same pack: it is simply Get,
// reshaped to the (kind, data, found, err) signature packfile expects.
func (r *Repository) resolveExternal(id objectid.ID) (packfile.ObjectKind, []byte, bool, error) {
	kind, data, err := r.Get(id)
	if err != nil {
		if _, ok := err.(*modelerr.MissingObjectError); ok {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	return kind, data, true, nil
}

// Has reports whether id exists anywhere in the repository's object
// database (loose or packed, including alternates).
func (r *Repository) Has(id objectid.ID) bool {
	for _, dir := range r.objDirs {
		if _, _, ok, _ := readLoose(dir, id); ok {
			return true
		}
	}
	for _, store := range r.stores {
		if store.Has(id) {
			return true
		}
	}
	return false
}

// GetCommit reads and parses the commit object named by id.
func (r *Repository) GetCommit(id objectid.ID) (gitobject.Commit, error) {
	kind, data, err := r.Get(id)
	if err != nil {
		return gitobject.Commit{}, err
	}
	if kind != packfile.KindCommit {
		return gitobject.Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "expected commit, found " + kind.String()}
	}
	return gitobject.ParseCommit(id, data)
}

// GetTree reads and parses the tree object named by id.
func (r *Repository) GetTree(id objectid.ID) (*gitobject.Tree, error) {
	kind, data, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if kind != packfile.KindTree {
		return nil, &modelerr.MalformedObjectError{ID: id.String(), Reason: "expected tree, found " + kind.String()}
	}
	return gitobject.ParseTree(id, data)
}

// ResolvePrefix finds the unique object id across this repository's loose
// objects and every pack (including alternates) matching a hex prefix. It
// returns ok=false both when there is no match and when the prefix is
// ambiguous.
func (r *Repository) ResolvePrefix(prefix string) (objectid.ID, bool) {
	prefixBytes, prefixLen, ok := parseHexPrefix(prefix)
	if !ok {
		return objectid.ID{}, false
	}

	var match objectid.ID
	found := false

	for _, dir := range r.objDirs {
		ids, err := filepathGlobLoose(dir)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if hasPrefixBytes(id, prefixBytes, prefixLen) {
				if found && id != match {
					return objectid.ID{}, false
				}
				match = id
				found = true
			}
		}
	}
	for _, store := range r.stores {
		if id, ok := store.ResolvePrefix(prefixBytes, prefixLen); ok {
			if found && id != match {
				return objectid.ID{}, false
			}
			match = id
			found = true
		}
	}
	return match, found
}

// parseHexPrefix decodes a hex string of odd or even length into full bytes
// plus a trailing half-byte packed into the high nibble of one extra byte,
// matching the convention packfile.Index.FindPrefix expects.
func parseHexPrefix(prefix string) (data []byte, hexLen int, ok bool) {
	if len(prefix) == 0 || len(prefix) > objectid.HexSize {
		return nil, 0, false
	}
	full := len(prefix) / 2
	data = make([]byte, full+1)
	for i := 0; i < full; i++ {
		b, ok := hexByte(prefix[2*i], prefix[2*i+1])
		if !ok {
			return nil, 0, false
		}
		data[i] = b
	}
	if len(prefix)%2 == 1 {
		hi, ok := hexNibble(prefix[len(prefix)-1])
		if !ok {
			return nil, 0, false
		}
		data[full] = hi << 4
	}
	return data, len(prefix), true
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok := hexNibble(hi)
	if !ok {
		return 0, false
	}
	l, ok := hexNibble(lo)
	if !ok {
		return 0, false
	}
	return h<<4 | l, true
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func hasPrefixBytes(id objectid.ID, prefix []byte, prefixLen int) bool {
	full := prefixLen / 2
	for i := 0; i < full; i++ {
		if id[i] != prefix[i] {
			return false
		}
	}
	if prefixLen%2 == 1 {
		return id[full]>>4 == prefix[full]>>4
	}
	return true
}
