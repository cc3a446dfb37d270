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

package height_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitversion.dev/gitversion/height"
	"gitversion.dev/gitversion/internal/gitobject"
	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/pathfilter"
	"gitversion.dev/gitversion/version"
)

// fakeRepo and fakeResolver are hand-rolled doubles for height.Walker's two
// narrow interfaces (repository, resolver), built directly rather than
// through a real .git tree so each test can focus on one ancestry shape.
type fakeRepo struct {
	commits map[objectid.ID]gitobject.Commit
	trees   map[objectid.ID]*gitobject.Tree
	counter uint32
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{commits: make(map[objectid.ID]gitobject.Commit), trees: make(map[objectid.ID]*gitobject.Tree)}
}

func (f *fakeRepo) nextID() objectid.ID {
	f.counter++
	var raw [objectid.Size]byte
	binary.BigEndian.PutUint32(raw[objectid.Size-4:], f.counter)
	id, err := objectid.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return id
}

func (f *fakeRepo) GetCommit(id objectid.ID) (gitobject.Commit, error) {
	c, ok := f.commits[id]
	if !ok {
		return gitobject.Commit{}, &modelerr.MissingObjectError{ID: id.String()}
	}
	return c, nil
}

func (f *fakeRepo) GetTree(id objectid.ID) (*gitobject.Tree, error) {
	tr, ok := f.trees[id]
	if !ok {
		return nil, &modelerr.MissingObjectError{ID: id.String()}
	}
	return tr, nil
}

type entrySpec struct {
	name   string
	mode   string
	target objectid.ID
}

func (f *fakeRepo) addBlob(content string) objectid.ID {
	id := f.nextID()
	// blobs never need a body lookup in these tests; registering a (fake,
	// never-dereferenced) id is enough to give tree entries distinct targets.
	_ = content
	return id
}

func (f *fakeRepo) addTree(entries ...entrySpec) objectid.ID {
	var raw []byte
	for _, e := range entries {
		raw = append(raw, e.mode...)
		raw = append(raw, ' ')
		raw = append(raw, e.name...)
		raw = append(raw, 0)
		raw = append(raw, e.target[:]...)
	}
	id := f.nextID()
	tr, err := gitobject.ParseTree(id, raw)
	if err != nil {
		panic(err)
	}
	f.trees[id] = tr
	return id
}

func (f *fakeRepo) addCommit(tree objectid.ID, parents ...objectid.ID) objectid.ID {
	id := f.nextID()
	f.commits[id] = gitobject.Commit{ID: id, Tree: tree, Parents: parents}
	return id
}

type fakeResolver struct {
	versions map[objectid.ID]string // commit id -> "version" string; absent = not found
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{versions: make(map[objectid.ID]string)}
}

func (r *fakeResolver) set(id objectid.ID, v string) {
	r.versions[id] = v
}

func (r *fakeResolver) ResolveAtCommit(commitID objectid.ID, _ string) (*version.Descriptor, bool, error) {
	v, ok := r.versions[commitID]
	if !ok {
		return nil, false, nil
	}
	sv, err := version.ParseSemVer(v)
	if err != nil {
		return nil, false, err
	}
	return &version.Descriptor{Version: sv}, true, nil
}

func TestWalker_Height_LinearChainSameVersion(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()

	root := repo.addTree()
	c1 := repo.addCommit(root)
	c2 := repo.addCommit(root, c1)
	c3 := repo.addCommit(root, c2)

	for _, c := range []objectid.ID{c1, c2, c3} {
		resolver.set(c, "1.0")
	}

	w := height.NewWalker(repo, resolver, "", pathfilter.Compile(nil, "", false), version.PrecisionMinor)
	h, err := w.Height(c3)
	require.NoError(t, err)
	assert.Equal(t, 3, h)
}

func TestWalker_Height_VersionBoundaryStopsWalk(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()

	root := repo.addTree()
	c1 := repo.addCommit(root) // root, version 0.9
	c2 := repo.addCommit(root, c1)
	c3 := repo.addCommit(root, c2)

	resolver.set(c1, "0.9")
	resolver.set(c2, "1.0")
	resolver.set(c3, "1.0")

	w := height.NewWalker(repo, resolver, "", pathfilter.Compile(nil, "", false), version.PrecisionMinor)
	h, err := w.Height(c3)
	require.NoError(t, err)
	// c1's 0.9 differs from c3's 1.0 at minor precision, so the walk stops
	// before c1 contributes: c2 gets height 1 (no ancestor), c3 gets 2.
	assert.Equal(t, 2, h)
}

func TestWalker_Height_MergeTakesMaxParentHeight(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()

	root := repo.addTree()
	base := repo.addCommit(root)
	left := repo.addCommit(root, base)
	left2 := repo.addCommit(root, left)
	right := repo.addCommit(root, base)
	merge := repo.addCommit(root, left2, right)

	for _, c := range []objectid.ID{base, left, left2, right, merge} {
		resolver.set(c, "1.0")
	}

	w := height.NewWalker(repo, resolver, "", pathfilter.Compile(nil, "", false), version.PrecisionMinor)
	h, err := w.Height(merge)
	require.NoError(t, err)
	// left chain: base(1) -> left(2) -> left2(3); right chain: base(1) -> right(2).
	// merge takes the longer (left2) side plus its own bump.
	assert.Equal(t, 4, h)
}

func TestWalker_Height_NotFoundAtStart(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()
	root := repo.addTree()
	c1 := repo.addCommit(root)

	w := height.NewWalker(repo, resolver, "", pathfilter.Compile(nil, "", false), version.PrecisionMinor)
	h, err := w.Height(c1)
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}

func TestWalker_Height_PathFilterIgnoresIrrelevantCommits(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()

	blobA1 := repo.addBlob("a-v1")
	blobB1 := repo.addBlob("b-v1")
	blobB2 := repo.addBlob("b-v2")
	blobA2 := repo.addBlob("a-v2")

	srcTree1 := repo.addTree(entrySpec{"a.txt", "100644", blobA1})
	otherTree1 := repo.addTree(entrySpec{"b.txt", "100644", blobB1})
	tree1 := repo.addTree(entrySpec{"src", "40000", srcTree1}, entrySpec{"other", "40000", otherTree1})
	c1 := repo.addCommit(tree1) // root: introduces src/a.txt, relevant

	otherTree2 := repo.addTree(entrySpec{"b.txt", "100644", blobB2})
	tree2 := repo.addTree(entrySpec{"src", "40000", srcTree1}, entrySpec{"other", "40000", otherTree2})
	c2 := repo.addCommit(tree2, c1) // only touches other/, irrelevant

	srcTree2 := repo.addTree(entrySpec{"a.txt", "100644", blobA2})
	tree3 := repo.addTree(entrySpec{"src", "40000", srcTree2}, entrySpec{"other", "40000", otherTree2})
	c3 := repo.addCommit(tree3, c2) // touches src/, relevant

	for _, c := range []objectid.ID{c1, c2, c3} {
		resolver.set(c, "1.0")
	}

	filters := pathfilter.Compile([]string{"src"}, "", false)
	w := height.NewWalker(repo, resolver, "", filters, version.PrecisionMinor)
	h, err := w.Height(c3)
	require.NoError(t, err)
	assert.Equal(t, 2, h)
}

func TestWalker_Height_RootCommitIrrelevantUnderFilter(t *testing.T) {
	repo := newFakeRepo()
	resolver := newFakeResolver()

	blobB1 := repo.addBlob("b-v1")
	otherTree1 := repo.addTree(entrySpec{"b.txt", "100644", blobB1})
	tree1 := repo.addTree(entrySpec{"other", "40000", otherTree1})
	c1 := repo.addCommit(tree1) // root touches nothing under src/

	resolver.set(c1, "1.0")

	filters := pathfilter.Compile([]string{"src"}, "", false)
	w := height.NewWalker(repo, resolver, "", filters, version.PrecisionMinor)
	h, err := w.Height(c1)
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}
