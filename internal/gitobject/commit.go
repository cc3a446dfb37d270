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

// Package gitobject parses the text bodies of commit and tree objects into
// typed records, once the object store has located and decompressed their
// raw bytes.
//
// A Commit holds only the parent ids in its own body; parents are looked up
// on demand through a Repository. This keeps a single Commit's memory
// bounded regardless of ancestry graph size and avoids any possibility of
// an ownership cycle between commits.
package gitobject

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
)

// Signature is an author or committer identity attached to a commit: a name,
// an email, the number of seconds since the Unix epoch the action occurred
// at, and the signer's UTC zone offset in minutes.
type Signature struct {
	Name        string
	Email       string
	Seconds     int64
	TZOffsetMin int
}

// Commit is the parsed form of a commit object's text body.
type Commit struct {
	ID        objectid.ID
	Tree      objectid.ID
	Parents   []objectid.ID // order is the textual order in the object; significant for tie-breaks
	Author    Signature
	Committer Signature
	Message   string
}

// ParseCommit parses the raw (already decompressed, header-stripped) text
// body of a commit object.
//
// The expected shape, per the Git commit-object format, is a sequence of
// "key value" header lines (tree, parent*, author, committer, gpgsig*,
// ...) followed by a blank line and the free-form commit message.
// Unrecognized header keys (e.g. "gpgsig", "mergetag") are skipped together
// with their continuation lines; their values are not kept on the Commit.
func ParseCommit(id objectid.ID, body []byte) (Commit, error) {
	c := Commit{ID: id}

	lines := splitHeaderLines(body)
	i := 0
	sawTree := false

	for ; i < len(lines); i++ {
		line := lines[i]
		if len(line) == 0 {
			i++ // consume the blank separator line
			break
		}

		key, rest, ok := cutHeaderLine(line)
		if !ok {
			return Commit{}, &modelerr.MalformedObjectError{
				ID:     id.String(),
				Reason: fmt.Sprintf("commit header line %q is not key-value", line),
			}
		}

		switch key {
		case "tree":
			treeID, err := objectid.Parse(rest)
			if err != nil {
				return Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "invalid tree id: " + err.Error()}
			}
			c.Tree = treeID
			sawTree = true
		case "parent":
			parentID, err := objectid.Parse(rest)
			if err != nil {
				return Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "invalid parent id: " + err.Error()}
			}
			c.Parents = append(c.Parents, parentID)
		case "author":
			sig, err := parseSignature(rest)
			if err != nil {
				return Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "invalid author line: " + err.Error()}
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(rest)
			if err != nil {
				return Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "invalid committer line: " + err.Error()}
			}
			c.Committer = sig
		default:
			// Unknown header (gpgsig, mergetag, encoding, ...): skip any
			// continuation lines that are indented with a leading space, per
			// the Git commit-object multi-line header convention.
			for i+1 < len(lines) && len(lines[i+1]) > 0 && lines[i+1][0] == ' ' {
				i++
			}
		}
	}

	if !sawTree {
		return Commit{}, &modelerr.MalformedObjectError{ID: id.String(), Reason: "commit has no tree header"}
	}

	c.Message = strings.Join(toStrings(lines[i:]), "\n")
	return c, nil
}

func splitHeaderLines(body []byte) [][]byte {
	return bytes.Split(body, []byte("\n"))
}

func toStrings(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

func cutHeaderLine(line []byte) (key, rest string, ok bool) {
	idx := bytes.IndexByte(line, ' ')
	if idx < 0 {
		return "", "", false
	}
	return string(line[:idx]), string(line[idx+1:]), true
}

// parseSignature parses a "Name <email> seconds tzoffset" signature line, as
// found after the "author "/"committer " key on a commit object.
func parseSignature(s string) (Signature, error) {
	lt := strings.LastIndexByte(s, '<')
	gt := strings.LastIndexByte(s, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("missing <email> in %q", s)
	}

	name := strings.TrimSpace(s[:lt])
	email := s[lt+1 : gt]
	rest := strings.Fields(strings.TrimSpace(s[gt+1:]))
	if len(rest) != 2 {
		return Signature{}, fmt.Errorf("expected \"seconds tzoffset\" after email in %q", s)
	}

	seconds, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid timestamp %q: %w", rest[0], err)
	}

	tz, err := parseTZOffset(rest[1])
	if err != nil {
		return Signature{}, err
	}

	return Signature{Name: name, Email: email, Seconds: seconds, TZOffsetMin: tz}, nil
}

// parseTZOffset parses a "+HHMM" or "-HHMM" zone offset into signed minutes.
func parseTZOffset(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid timezone offset %q", s)
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: %w", s, err)
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: %w", s, err)
	}
	total := hh*60 + mm
	if s[0] == '-' {
		total = -total
	}
	return total, nil
}
