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

	"gitversion.dev/gitversion/internal/modelerr"
)

// readDeltaHeaderSize decodes one of the two MSB-continuation, 7-bit-per-byte
// varints at the start of a delta stream (base length, then target length).
// It returns the decoded value and the number of bytes consumed.
func readDeltaHeaderSize(data []byte) (size int64, n int) {
	shift := uint(0)
	for {
		b := data[n]
		size |= int64(b&0x7f) << shift
		n++
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return size, n
}

// applyDelta reconstructs a target object by interpreting the COPY/INSERT
// instruction stream in delta against base: the high bit of each opcode
// byte distinguishes COPY (1) from INSERT (0); INSERT copies the
// opcode's low 7 bits of literal bytes from the delta stream; COPY reads up
// to four offset bytes and three size bytes, selected by the opcode's low 7
// bits as flags (LSB first for offset, then size), with a size of 0 meaning
// 0x10000.
func applyDelta(base, delta []byte) ([]byte, error) {
	baseLen, n := readDeltaHeaderSize(delta)
	delta = delta[n:]
	if baseLen != int64(len(base)) {
		return nil, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("delta base length mismatch: header says %d, base stream is %d", baseLen, len(base)),
		}
	}

	targetLen, n := readDeltaHeaderSize(delta)
	delta = delta[n:]

	target := make([]byte, 0, targetLen)

	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]

		if op&0x80 != 0 {
			// COPY: op's low 7 bits select which offset/size bytes are present.
			var copyOffset uint32
			var copySize uint32

			if op&0x01 != 0 {
				copyOffset |= uint32(delta[0])
				delta = delta[1:]
			}
			if op&0x02 != 0 {
				copyOffset |= uint32(delta[0]) << 8
				delta = delta[1:]
			}
			if op&0x04 != 0 {
				copyOffset |= uint32(delta[0]) << 16
				delta = delta[1:]
			}
			if op&0x08 != 0 {
				copyOffset |= uint32(delta[0]) << 24
				delta = delta[1:]
			}
			if op&0x10 != 0 {
				copySize |= uint32(delta[0])
				delta = delta[1:]
			}
			if op&0x20 != 0 {
				copySize |= uint32(delta[0]) << 8
				delta = delta[1:]
			}
			if op&0x40 != 0 {
				copySize |= uint32(delta[0]) << 16
				delta = delta[1:]
			}
			if copySize == 0 {
				copySize = 0x10000
			}

			end := uint64(copyOffset) + uint64(copySize)
			if end > uint64(len(base)) {
				return nil, &modelerr.MalformedObjectError{
					Reason: fmt.Sprintf("delta COPY out of range: offset=%d size=%d base=%d", copyOffset, copySize, len(base)),
				}
			}
			target = append(target, base[copyOffset:end]...)
		} else {
			// INSERT: low 7 bits of op are the literal byte count.
			litLen := int(op & 0x7f)
			if litLen == 0 {
				return nil, &modelerr.MalformedObjectError{Reason: "delta INSERT opcode with zero length"}
			}
			if litLen > len(delta) {
				return nil, &modelerr.MalformedObjectError{Reason: "delta INSERT runs past end of delta stream"}
			}
			target = append(target, delta[:litLen]...)
			delta = delta[litLen:]
		}
	}

	if int64(len(target)) != targetLen {
		return nil, &modelerr.MalformedObjectError{
			Reason: fmt.Sprintf("delta reconstruction length mismatch: got %d want %d", len(target), targetLen),
		}
	}
	return target, nil
}
