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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
)

const (
	idxMagic       = 0xff744f63 // "\377tOc"
	idxVersion2    = 2
	idxFanoutSize  = 256
	idxFanoutBytes = idxFanoutSize * 4
	idxHeaderBytes = 8 // magic + version
)

// Index is a parsed pack-v2 .idx file: the 256-entry fanout table, the
// sorted object ids, their CRC32 checksums, and their pack offsets (with the
// 64-bit overflow table for offsets >= 2^31).
//
// Index reads the whole .idx file into memory up front rather than
// memory-mapping it or touching disk per lookup; fanout + binary search
// are then pure in-memory operations.
type Index struct {
	path     string
	fanout   [idxFanoutSize]uint32
	ids      []objectid.ID // sorted ascending, len == fanout[255]
	crc      []uint32
	offset32 []uint32
	offset64 []uint64
}

// OpenIndex reads and parses a pack-v2 .idx file at path.
func OpenIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseIndex(path, data)
}

func parseIndex(path string, data []byte) (*Index, error) {
	if len(data) < idxHeaderBytes {
		return nil, &modelerr.MalformedObjectError{Reason: fmt.Sprintf("pack index %s is too short", path)}
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	version := binary.BigEndian.Uint32(data[4:8])
	if magic != idxMagic || version != idxVersion2 {
		return nil, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("pack index %s is not a recognized v2 index (magic=%x version=%d)", path, magic, version),
		}
	}

	off := idxHeaderBytes
	idx := &Index{path: path}

	for i := 0; i < idxFanoutSize; i++ {
		idx.fanout[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	count := int(idx.fanout[idxFanoutSize-1])

	idx.ids = make([]objectid.ID, count)
	for i := 0; i < count; i++ {
		id, err := objectid.FromBytes(data[off : off+objectid.Size])
		if err != nil {
			return nil, err
		}
		idx.ids[i] = id
		off += objectid.Size
	}

	idx.crc = make([]uint32, count)
	for i := 0; i < count; i++ {
		idx.crc[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}

	idx.offset32 = make([]uint32, count)
	overflowCount := 0
	for i := 0; i < count; i++ {
		v := binary.BigEndian.Uint32(data[off : off+4])
		idx.offset32[i] = v
		if v&0x80000000 != 0 {
			overflowCount++
		}
		off += 4
	}

	if overflowCount > 0 {
		idx.offset64 = make([]uint64, overflowCount)
		for i := 0; i < overflowCount; i++ {
			idx.offset64[i] = binary.BigEndian.Uint64(data[off : off+8])
			off += 8
		}
	}

	return idx, nil
}

// Count returns the number of objects indexed.
func (idx *Index) Count() int {
	return len(idx.ids)
}

// FindOffset returns the pack-file byte offset of id, and true if id is
// present in this index. Lookup is a binary search within the fanout bucket
// selected by id's first byte.
func (idx *Index) FindOffset(id objectid.ID) (int64, bool) {
	i, ok := idx.findIndex(id)
	if !ok {
		return 0, false
	}
	return idx.offsetAt(i), true
}

// FindPrefix returns the unique object id matching the given hex-decoded
// prefix bytes (of length prefixLen hex characters, prefixBytes holding
// ceil(prefixLen/2) bytes with the low nibble of the last byte ignored when
// prefixLen is odd), and true only when exactly one indexed id matches.
func (idx *Index) FindPrefix(prefixBytes []byte, prefixLen int) (objectid.ID, bool) {
	if len(idx.ids) == 0 {
		return objectid.ID{}, false
	}
	lead := prefixBytes[0]
	lo, hi := 0, len(idx.ids)
	if lead > 0 {
		lo = int(idx.fanout[lead-1])
	}
	hi = int(idx.fanout[lead])

	var match objectid.ID
	found := false
	for i := lo; i < hi; i++ {
		if hasPrefix(idx.ids[i], prefixBytes, prefixLen) {
			if found {
				return objectid.ID{}, false // ambiguous
			}
			match = idx.ids[i]
			found = true
		}
	}
	return match, found
}

func hasPrefix(id objectid.ID, prefixBytes []byte, prefixLen int) bool {
	fullBytes := prefixLen / 2
	if !bytes.Equal(id[:fullBytes], prefixBytes[:fullBytes]) {
		return false
	}
	if prefixLen%2 == 1 {
		want := prefixBytes[fullBytes] & 0xf0
		got := id[fullBytes] & 0xf0
		if want != got {
			return false
		}
	}
	return true
}

func (idx *Index) findIndex(id objectid.ID) (int, bool) {
	lead := id[0]
	lo, hi := 0, len(idx.ids)
	if lead > 0 {
		lo = int(idx.fanout[lead-1])
	}
	hi = int(idx.fanout[lead])

	n := sort.Search(hi-lo, func(i int) bool {
		return !idx.ids[lo+i].Less(id)
	})
	pos := lo + n
	if pos < hi && idx.ids[pos] == id {
		return pos, true
	}
	return 0, false
}

func (idx *Index) offsetAt(i int) int64 {
	v := idx.offset32[i]
	if v&0x80000000 == 0 {
		return int64(v)
	}
	return int64(idx.offset64[v&0x7fffffff])
}

// IDs returns the sorted object ids in this index, in ascending order. The
// returned slice MUST NOT be mutated by callers.
func (idx *Index) IDs() []objectid.ID {
	return idx.ids
}
