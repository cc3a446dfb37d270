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

package packfile

import (
	"path/filepath"
	"sort"
	"strings"

	"gitversion.dev/gitversion/internal/objectid"
)

// Store aggregates every pack opened from one objects/pack directory. Packs
// are searched in a stable (lexicographic, newest-name-last is not assumed)
// order; the first pack whose index contains the requested id wins.
type Store struct {
	packs []*Pack
}

// OpenStore opens every pack-*.idx/pack-*.pack pair found directly inside
// packDir. packDir that does not exist yields an empty, valid Store (a
// repository with no packs, all-loose, is legal).
func OpenStore(packDir string) (*Store, error) {
	entries, err := filepath.Glob(filepath.Join(packDir, "pack-*.idx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	s := &Store{}
	for _, idxPath := range entries {
		packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
		p, err := OpenPack(packPath, idxPath)
		if err != nil {
			return nil, err
		}
		s.packs = append(s.packs, p)
	}
	return s, nil
}

// Close closes every pack opened by this store.
func (s *Store) Close() error {
	var firstErr error
	for _, p := range s.packs {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Has reports whether id is present in any pack managed by this store.
func (s *Store) Has(id objectid.ID) bool {
	for _, p := range s.packs {
		if p.Has(id) {
			return true
		}
	}
	return false
}

// Get reconstructs the object identified by id from whichever pack contains
// it. resolveRef is threaded through to every pack so that a REF_DELTA base
// that lives outside the pack currently being read (in another pack, or as a
// loose object) can still be resolved.
func (s *Store) Get(id objectid.ID, resolveRef func(objectid.ID) (ObjectKind, []byte, bool, error)) (ObjectKind, []byte, bool, error) {
	for _, p := range s.packs {
		if p.Has(id) {
			kind, data, err := p.Get(id, resolveRef)
			if err != nil {
				return 0, nil, false, err
			}
			return kind, data, true, nil
		}
	}
	return 0, nil, false, nil
}

// ResolvePrefix finds the unique object id across every pack in this store
// matching the given prefix. It returns ok=false both when there is no match
// and when the prefix is ambiguous across packs.
func (s *Store) ResolvePrefix(prefixBytes []byte, prefixLen int) (objectid.ID, bool) {
	var match objectid.ID
	found := false
	for _, p := range s.packs {
		if id, ok := p.ResolvePrefix(prefixBytes, prefixLen); ok {
			if found {
				return objectid.ID{}, false
			}
			match = id
			found = true
		}
	}
	return match, found
}

// AllIDs returns every object id indexed by any pack in this store.
func (s *Store) AllIDs() []objectid.ID {
	var ids []objectid.ID
	for _, p := range s.packs {
		ids = append(ids, p.IDs()...)
	}
	return ids
}
