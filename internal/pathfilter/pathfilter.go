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

// Package pathfilter compiles the pathFilters entries of a version
// descriptor into a small matcher used by the height walker to decide
// whether a commit's changes are relevant to a project's version.
package pathfilter

import (
	"strings"
)

// Path is a single compiled path specification: an include or an exclude,
// rooted at either a descriptor directory or the repository root, reduced
// to a normalised repo-relative form.
type Path struct {
	Exclude bool
	IsRoot  bool // matches every path in the repository
	Rel     string
}

// Set is an ordered collection of compiled Path filters plus the case
// sensitivity rule ("core.ignorecase") they were compiled under.
type Set struct {
	paths      []Path
	ignoreCase bool
}

// Compile compiles the raw path specifications found in a descriptor's
// pathFilters list. baseDir is the repo-relative directory the descriptor
// itself lives in (every spec without a ":/" or "/" root prefix is resolved
// relative to it). An empty specs list compiles to a Set that
// matches every path in the repository: absence of any filter means the
// entire repository is relevant.
func Compile(specs []string, baseDir string, ignoreCase bool) *Set {
	s := &Set{ignoreCase: ignoreCase}
	for _, spec := range specs {
		s.paths = append(s.paths, compileOne(spec, baseDir))
	}
	return s
}

func compileOne(spec string, baseDir string) Path {
	exclude := false
	switch {
	case strings.HasPrefix(spec, ":!"):
		exclude = true
		spec = spec[2:]
	case strings.HasPrefix(spec, ":^"):
		exclude = true
		spec = spec[2:]
	}

	root := false
	switch {
	case strings.HasPrefix(spec, ":/"):
		spec = spec[2:]
		root = true
	case strings.HasPrefix(spec, "/"):
		spec = spec[1:]
		root = true
	}

	var rel string
	switch {
	case spec == "" || spec == ".":
		rel = strings.Trim(baseDir, "/")
		if rel == "" {
			root = true
		}
	case root:
		rel = normalize(spec)
	default:
		rel = normalize(joinRel(baseDir, spec))
	}

	return Path{Exclude: exclude, IsRoot: root && rel == "", Rel: rel}
}

func joinRel(base, spec string) string {
	base = strings.Trim(base, "/")
	spec = strings.Trim(spec, "/")
	if base == "" {
		return spec
	}
	if spec == "" {
		return base
	}
	return base + "/" + spec
}

// normalize collapses "." segments and resolves ".." against what precedes
// them, producing a forward-slash, no-leading/trailing-slash path.
func normalize(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	var out []string
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}

// Matches reports whether repo-relative path p is relevant under this
// filter set: included (explicitly, or because there are no include
// filters at all) and not excluded.
func (s *Set) Matches(p string) bool {
	if s == nil || len(s.paths) == 0 {
		return true
	}

	hasIncludes := false
	included := false
	for _, f := range s.paths {
		if f.Exclude {
			continue
		}
		hasIncludes = true
		if f.covers(p, s.ignoreCase) {
			included = true
		}
	}
	if !hasIncludes {
		included = true
	}
	if !included {
		return false
	}

	for _, f := range s.paths {
		if f.Exclude && f.covers(p, s.ignoreCase) {
			return false
		}
	}
	return true
}

// covers reports whether path p falls under f (p equals f.Rel or is nested
// below it; f.IsRoot covers everything).
func (f Path) covers(p string, ignoreCase bool) bool {
	if f.IsRoot {
		return true
	}
	rel := f.Rel
	if ignoreCase {
		p = strings.ToLower(p)
		rel = strings.ToLower(rel)
	}
	if p == rel {
		return true
	}
	return strings.HasPrefix(p, rel+"/")
}

// Empty reports whether this Set has no compiled filters at all (the
// "entire repository" case).
func (s *Set) Empty() bool {
	return s == nil || len(s.paths) == 0
}
