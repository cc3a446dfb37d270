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

// Package height computes a commit's version height: the number of
// commits along its longest ancestry path on which the declared version
// has not changed.
package height

import "gitversion.dev/gitversion/internal/objectid"

// tracker memoises per-commit height during a single walk. It is created
// fresh for every Walker.Height call and discarded afterward; it is not
// safe for concurrent use or for reuse across walks against different
// project directories.
type tracker struct {
	heights map[objectid.ID]int
}

func newTracker() *tracker {
	return &tracker{heights: make(map[objectid.ID]int)}
}

func (t *tracker) get(id objectid.ID) (int, bool) {
	h, ok := t.heights[id]
	return h, ok
}

func (t *tracker) record(id objectid.ID, height int) {
	t.heights[id] = height
}
