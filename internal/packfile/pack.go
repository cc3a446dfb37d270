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
	"fmt"
	"io"
	"os"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
)

// ObjectKind mirrors the object-type tag carried in a pack entry's header.
type ObjectKind uint8

const (
	KindCommit ObjectKind = 1
	KindTree   ObjectKind = 2
	KindBlob   ObjectKind = 3
	KindTag    ObjectKind = 4
	KindOfsDelta ObjectKind = 6
	KindRefDelta ObjectKind = 7
)

func (k ObjectKind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Pack wraps one pack-<name>.pack / pack-<name>.idx pair: the index provides
// offset lookups, and the pack file itself is read on demand to resolve
// object headers and delta chains.
type Pack struct {
	idx   *Index
	path  string
	file  *os.File
	cache *objectCache
}

// OpenPack opens the pack file at packPath and its companion index at
// idxPath.
func OpenPack(packPath, idxPath string) (*Pack, error) {
	idx, err := OpenIndex(idxPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(packPath)
	if err != nil {
		return nil, err
	}
	return &Pack{idx: idx, path: packPath, file: f, cache: newObjectCache()}, nil
}

// Close releases the pack file handle. It does not release the index,
// which holds no file handle of its own: indexes are read eagerly into
// memory rather than memory-mapped.
func (p *Pack) Close() error {
	return p.file.Close()
}

// Has reports whether id is present in this pack's index.
func (p *Pack) Has(id objectid.ID) bool {
	_, ok := p.idx.FindOffset(id)
	return ok
}

// ResolvePrefix resolves a hex id prefix to the unique matching object id in
// this pack, if any.
func (p *Pack) ResolvePrefix(prefixBytes []byte, prefixLen int) (objectid.ID, bool) {
	return p.idx.FindPrefix(prefixBytes, prefixLen)
}

// IDs returns every object id indexed by this pack.
func (p *Pack) IDs() []objectid.ID {
	return p.idx.IDs()
}

// Get reconstructs the object identified by id, resolving any OFS_DELTA or
// REF_DELTA chain against resolveRef for base objects that live outside this
// pack (a REF_DELTA base may be a loose object or live in another pack or
// alternate). resolveRef is nil-safe: when a REF_DELTA base is not found in
// this pack's own index, Get calls resolveRef(baseID) to locate it elsewhere.
func (p *Pack) Get(id objectid.ID, resolveRef func(objectid.ID) (ObjectKind, []byte, bool, error)) (ObjectKind, []byte, error) {
	offset, ok := p.idx.FindOffset(id)
	if !ok {
		return 0, nil, &modelerr.MissingObjectError{ID: id.String()}
	}
	return p.getAtOffset(offset, resolveRef)
}

func (p *Pack) getAtOffset(offset int64, resolveRef func(objectid.ID) (ObjectKind, []byte, bool, error)) (ObjectKind, []byte, error) {
	if entry, ok := p.cache.get(offset); ok {
		return entry.kind, entry.data, nil
	}

	kind, size, headerLen, err := p.readEntryHeader(offset)
	if err != nil {
		return 0, nil, err
	}

	section := io.NewSectionReader(p.file, offset+int64(headerLen), p.fileSize()-offset-int64(headerLen))

	switch kind {
	case KindOfsDelta:
		relOffset, n := readOffsetDeltaBase(section)
		baseOffset := offset - relOffset
		baseKind, baseData, err := p.getAtOffset(baseOffset, resolveRef)
		if err != nil {
			return 0, nil, err
		}
		deltaBytes, err := p.readDeltaBody(offset+int64(headerLen)+int64(n), size)
		if err != nil {
			return 0, nil, err
		}
		target, err := applyDelta(baseData, deltaBytes)
		if err != nil {
			return 0, nil, err
		}
		p.cache.put(offset, baseKind, target)
		return baseKind, target, nil

	case KindRefDelta:
		var baseIDBytes [objectid.Size]byte
		if _, err := io.ReadFull(section, baseIDBytes[:]); err != nil {
			return 0, nil, fmt.Errorf("gitversion: reading REF_DELTA base id: %w", err)
		}
		baseID, err := objectid.FromBytes(baseIDBytes[:])
		if err != nil {
			return 0, nil, err
		}

		var baseKind ObjectKind
		var baseData []byte
		if baseOffset, ok := p.idx.FindOffset(baseID); ok {
			baseKind, baseData, err = p.getAtOffset(baseOffset, resolveRef)
		} else if resolveRef != nil {
			var found bool
			baseKind, baseData, found, err = resolveRef(baseID)
			if err == nil && !found {
				err = &modelerr.MissingObjectError{ID: baseID.String()}
			}
		} else {
			err = &modelerr.MissingObjectError{ID: baseID.String()}
		}
		if err != nil {
			return 0, nil, err
		}

		deltaBytes, err := p.readDeltaBody(offset+int64(headerLen)+objectid.Size, size)
		if err != nil {
			return 0, nil, err
		}
		target, err := applyDelta(baseData, deltaBytes)
		if err != nil {
			return 0, nil, err
		}
		p.cache.put(offset, baseKind, target)
		return baseKind, target, nil

	default:
		data, err := inflateN(section, size)
		if err != nil {
			return 0, nil, err
		}
		p.cache.put(offset, kind, data)
		return kind, data, nil
	}
}

func (p *Pack) fileSize() int64 {
	fi, err := p.file.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// readEntryHeader reads the variable-length pack object header at offset:
// the low 4 bits of the first byte carry the size's low 4 bits, the next 3
// bits carry the object type, and the MSB is the size-continuation flag;
// subsequent bytes extend the size 7 bits at a time while the MSB is set.
func (p *Pack) readEntryHeader(offset int64) (kind ObjectKind, size int64, headerLen int, err error) {
	buf := make([]byte, 1)
	if _, err = p.file.ReadAt(buf, offset); err != nil {
		return 0, 0, 0, fmt.Errorf("gitversion: reading pack entry header at %d: %w", offset, err)
	}
	b := buf[0]
	kind = ObjectKind((b >> 4) & 0x07)
	size = int64(b & 0x0f)
	shift := uint(4)
	headerLen = 1

	for b&0x80 != 0 {
		if _, err = p.file.ReadAt(buf, offset+int64(headerLen)); err != nil {
			return 0, 0, 0, fmt.Errorf("gitversion: reading pack entry header at %d: %w", offset, err)
		}
		b = buf[0]
		size |= int64(b&0x7f) << shift
		shift += 7
		headerLen++
	}

	return kind, size, headerLen, nil
}

// readDeltaBody reads and inflates the zlib-compressed delta script starting
// at byte offset off, expecting exactly size bytes of uncompressed output.
func (p *Pack) readDeltaBody(off, size int64) ([]byte, error) {
	section := io.NewSectionReader(p.file, off, p.fileSize()-off)
	return inflateN(section, size)
}

func readOffsetDeltaBase(r io.Reader) (offset int64, n int) {
	buf := make([]byte, 1)
	_, _ = r.Read(buf)
	b := buf[0]
	n = 1
	offset = int64(b & 0x7f)
	for b&0x80 != 0 {
		_, _ = r.Read(buf)
		b = buf[0]
		n++
		offset++
		offset = (offset << 7) | int64(b&0x7f)
	}
	return offset, n
}
