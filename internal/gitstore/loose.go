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
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
)

// readLoose reads and inflates a single loose object (objects/xx/yyyy...)
// from one of the repository's object directories, returning its kind and
// decompressed body with the "<type> <len>\0" header stripped.
func readLoose(objDir string, id objectid.ID) (packfile.ObjectKind, []byte, bool, error) {
	hex := id.String()
	path := filepath.Join(objDir, hex[:2], hex[2:])

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("gitversion: opening loose object %s: %w", hex, err)
	}
	defer f.Close()

	raw, err := inflateLoose(f)
	if err != nil {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: err.Error()}
	}

	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: "loose object missing NUL header terminator"}
	}
	header := string(raw[:nul])
	body := raw[nul+1:]

	typeName, lenStr, ok := cutSpace(header)
	if !ok {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: fmt.Sprintf("malformed loose object header %q", header)}
	}
	wantLen, err := strconv.Atoi(lenStr)
	if err != nil {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: fmt.Sprintf("malformed loose object length %q", lenStr)}
	}
	if wantLen != len(body) {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: fmt.Sprintf("loose object length mismatch: header says %d, body is %d", wantLen, len(body))}
	}

	kind, err := kindFromTypeName(typeName)
	if err != nil {
		return 0, nil, false, &modelerr.MalformedObjectError{ID: hex, Reason: err.Error()}
	}

	return kind, body, true, nil
}

func cutSpace(s string) (before, after string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func kindFromTypeName(name string) (packfile.ObjectKind, error) {
	switch name {
	case "commit":
		return packfile.KindCommit, nil
	case "tree":
		return packfile.KindTree, nil
	case "blob":
		return packfile.KindBlob, nil
	case "tag":
		return packfile.KindTag, nil
	default:
		return 0, fmt.Errorf("unrecognized loose object type %q", name)
	}
}

func inflateLoose(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// filepathGlobLoose enumerates every loose object id stored directly under
// objDir, i.e. every file matching "xx/yyyy...yyyy" where the fanout
// directory name and the file name concatenate to a 40-character hex id.
func filepathGlobLoose(objDir string) ([]objectid.ID, error) {
	fanouts, err := os.ReadDir(objDir)
	if err != nil {
		return nil, err
	}

	var ids []objectid.ID
	for _, fanout := range fanouts {
		if !fanout.IsDir() || len(fanout.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(objDir, fanout.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || len(f.Name()) != objectid.HexSize-2 {
				continue
			}
			id, err := objectid.Parse(fanout.Name() + f.Name())
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
