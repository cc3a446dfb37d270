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

import "sync"

// objectCache keeps fully-reconstructed (delta-resolved, decompressed)
// object payloads in memory, keyed by the object's pack-local byte offset.
// It exists so that a base object referenced by many OFS/REF deltas in the
// same pack is inflated and delta-applied only once per Store lifetime.
//
// The cache has no eviction policy within a single invocation; it is
// owned by exactly one Pack and is never shared across Store instances,
// so concurrent invocations against the same repository are safe as long
// as each uses its own Store.
type objectCache struct {
	mu      sync.Mutex
	entries map[int64]cachedObject
}

type cachedObject struct {
	kind ObjectKind
	data []byte
}

func newObjectCache() *objectCache {
	return &objectCache{entries: make(map[int64]cachedObject)}
}

func (c *objectCache) get(offset int64) (cachedObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[offset]
	return e, ok
}

func (c *objectCache) put(offset int64, kind ObjectKind, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[offset] = cachedObject{kind: kind, data: data}
}
