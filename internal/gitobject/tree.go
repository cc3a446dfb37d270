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

package gitobject

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
)

// EntryKind distinguishes the handful of mode values a tree entry can carry.
type EntryKind uint8

const (
	EntryBlob EntryKind = iota
	EntryExecutable
	EntrySymlink
	EntryTree
	EntryGitlink // a commit reference, e.g. a submodule
)

func (k EntryKind) String() string {
	switch k {
	case EntryBlob:
		return "blob"
	case EntryExecutable:
		return "executable"
	case EntrySymlink:
		return "symlink"
	case EntryTree:
		return "tree"
	case EntryGitlink:
		return "gitlink"
	default:
		return "unknown"
	}
}

// TreeEntry is one row of a tree object: a name, the kind of thing it names,
// and the id of the object it points at.
type TreeEntry struct {
	Name   string
	Kind   EntryKind
	Target objectid.ID
}

// Tree is the parsed form of a tree object's binary body: an ordered list of
// entries plus a name-keyed index for direct lookup.
type Tree struct {
	ID      objectid.ID
	Entries []TreeEntry
	byName  map[string]int
}

// ByName returns the entry named name, if this tree has one.
func (t *Tree) ByName(name string) (TreeEntry, bool) {
	i, ok := t.byName[name]
	if !ok {
		return TreeEntry{}, false
	}
	return t.Entries[i], true
}

// ParseTree parses the raw (already decompressed, header-stripped) binary
// body of a tree object. Each entry is "<mode> <name>\0<20-byte id>",
// repeated until the body is exhausted; tree entries are stored in the
// order Git itself sorts them (byte-wise over the name, directories as if
// name had a trailing slash), which ParseTree trusts the stored object to
// already respect rather than re-sorting.
func ParseTree(id objectid.ID, body []byte) (*Tree, error) {
	t := &Tree{ID: id, byName: make(map[string]int)}

	for len(body) > 0 {
		sp := bytes.IndexByte(body, ' ')
		if sp < 0 {
			return nil, &modelerr.MalformedObjectError{ID: id.String(), Reason: "tree entry missing mode/name separator"}
		}
		modeStr := string(body[:sp])
		mode, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return nil, &modelerr.MalformedObjectError{ID: id.String(), Reason: fmt.Sprintf("invalid tree entry mode %q", modeStr)}
		}

		nul := bytes.IndexByte(body[sp+1:], 0)
		if nul < 0 {
			return nil, &modelerr.MalformedObjectError{ID: id.String(), Reason: "tree entry missing NUL after name"}
		}
		name := string(body[sp+1 : sp+1+nul])

		idStart := sp + 1 + nul + 1
		if idStart+objectid.Size > len(body) {
			return nil, &modelerr.MalformedObjectError{ID: id.String(), Reason: "tree entry truncated before object id"}
		}
		target, err := objectid.FromBytes(body[idStart : idStart+objectid.Size])
		if err != nil {
			return nil, err
		}

		t.byName[name] = len(t.Entries)
		t.Entries = append(t.Entries, TreeEntry{Name: name, Kind: entryKindFromMode(mode), Target: target})

		body = body[idStart+objectid.Size:]
	}

	return t, nil
}

func entryKindFromMode(mode uint64) EntryKind {
	switch mode {
	case 0o40000:
		return EntryTree
	case 0o160000:
		return EntryGitlink
	case 0o120000:
		return EntrySymlink
	case 0o100755:
		return EntryExecutable
	default:
		return EntryBlob
	}
}

// SortedNames returns the entry names in this tree, sorted lexicographically.
// This can differ from the stored entry order, in which directories sort as
// if their names ended in "/"; this helper is for callers (tests,
// diagnostics) that want plain name order.
func (t *Tree) SortedNames() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}
