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

// Package packtest builds synthetic, on-disk .pack/.idx pairs for tests
// that need a real packed-object repository without shelling out to git.
// It is imported only from _test.go files elsewhere in the module.
package packtest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
)

const (
	idxMagic      = 0xff744f63
	idxVersion2   = 2
	idxFanoutSize = 256
)

type entry struct {
	id      objectid.ID
	kind    packfile.ObjectKind
	content []byte
	offset  int64
}

// Builder accumulates non-delta objects and assembles them into a single
// pack/index pair. Delta encoding is deliberately out of scope here:
// internal/packfile's own white-box tests exercise OFS_DELTA
// reconstruction directly; packtest exists to give other
// packages' tests a real packed-object repository to resolve against.
type Builder struct {
	entries []*entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddBlob registers a blob object under id with the given content.
func (b *Builder) AddBlob(id objectid.ID, content []byte) *Builder {
	b.entries = append(b.entries, &entry{id: id, kind: packfile.KindBlob, content: content})
	return b
}

// AddObject registers an arbitrary-kind object under id with the given
// content (e.g. a tree or commit body).
func (b *Builder) AddObject(id objectid.ID, kind packfile.ObjectKind, content []byte) *Builder {
	b.entries = append(b.entries, &entry{id: id, kind: kind, content: content})
	return b
}

// Write assembles the accumulated entries into dir/name.pack and
// dir/name.idx and returns both paths.
func (b *Builder) Write(dir, name string) (packPath, idxPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	var pack bytes.Buffer
	pack.WriteString("PACK")
	binary.Write(&pack, binary.BigEndian, uint32(2))
	binary.Write(&pack, binary.BigEndian, uint32(len(b.entries)))

	for _, e := range b.entries {
		e.offset = int64(pack.Len())
		writeEntryHeader(&pack, e.kind, int64(len(e.content)))
		compressed, cerr := zlibCompress(e.content)
		if cerr != nil {
			return "", "", cerr
		}
		pack.Write(compressed)
	}

	packPath = filepath.Join(dir, name+".pack")
	if err := os.WriteFile(packPath, pack.Bytes(), 0o644); err != nil {
		return "", "", err
	}

	idxPath = filepath.Join(dir, name+".idx")
	if err := os.WriteFile(idxPath, b.buildIndex(), 0o644); err != nil {
		return "", "", err
	}
	return packPath, idxPath, nil
}

func (b *Builder) buildIndex() []byte {
	sorted := make([]*entry, len(b.entries))
	copy(sorted, b.entries)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && bytes.Compare(sorted[j-1].id[:], sorted[j].id[:]) > 0; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(idxMagic))
	binary.Write(&buf, binary.BigEndian, uint32(idxVersion2))

	var fanout [idxFanoutSize]uint32
	for _, e := range sorted {
		for i := int(e.id[0]); i < idxFanoutSize; i++ {
			fanout[i]++
		}
	}
	for _, v := range fanout {
		binary.Write(&buf, binary.BigEndian, v)
	}
	for _, e := range sorted {
		buf.Write(e.id[:])
	}
	for range sorted {
		binary.Write(&buf, binary.BigEndian, uint32(0))
	}
	for _, e := range sorted {
		binary.Write(&buf, binary.BigEndian, uint32(e.offset))
	}
	return buf.Bytes()
}

func writeEntryHeader(buf *bytes.Buffer, kind packfile.ObjectKind, size int64) {
	first := byte(kind) << 4
	first |= byte(size & 0x0f)
	size >>= 4
	if size > 0 {
		first |= 0x80
	}
	buf.WriteByte(first)
	for size > 0 {
		bb := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			bb |= 0x80
		}
		buf.WriteByte(bb)
	}
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("packtest: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("packtest: compress: %w", err)
	}
	return buf.Bytes(), nil
}
