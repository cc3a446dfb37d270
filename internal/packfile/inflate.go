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
	"compress/zlib"
	"fmt"
	"io"
)

// inflate decompresses a zlib stream read from r and returns the raw
// uncompressed bytes. The pack reader uses inflateN instead, and loose
// objects are inflated by internal/gitstore's own reader.
//
// compress/zlib is used rather than a third-party package: zlib-framed
// DEFLATE is Git's on-disk wire format, not an application-level concern, and
// every known pure-Go Git implementation (including go-git, which the
// retrieved example pack depends on transitively through mantyr-git-semver)
// decompresses pack and loose objects with this same standard-library
// package.
func inflate(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gitversion: zlib header: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, fmt.Errorf("gitversion: zlib inflate: %w", err)
	}
	return buf.Bytes(), nil
}

// inflateN decompresses a zlib stream but stops once n bytes of
// uncompressed output have been produced. Object locations in this store
// always come from the index's byte offsets, so callers never need the
// compressed length the stream consumed.
func inflateN(r io.Reader, n int64) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gitversion: zlib header: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, zr, n); err != nil && err != io.EOF {
		return nil, fmt.Errorf("gitversion: zlib inflate: %w", err)
	}
	return buf.Bytes(), nil
}
