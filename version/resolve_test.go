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

package version_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitversion.dev/gitversion/internal/gitobject"
	"gitversion.dev/gitversion/internal/modelerr"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/packfile"
	"gitversion.dev/gitversion/version"
)

// fakeRepo is an in-memory stand-in for the repository interface Resolver
// needs: just enough of gitstore.Repository's Get/GetCommit/GetTree surface
// to drive the directory-ascent and inherit logic without a real .git.
type fakeRepo struct {
	commits map[objectid.ID]gitobject.Commit
	trees   map[objectid.ID]*gitobject.Tree
	blobs   map[objectid.ID][]byte
	counter uint32
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		commits: make(map[objectid.ID]gitobject.Commit),
		trees:   make(map[objectid.ID]*gitobject.Tree),
		blobs:   make(map[objectid.ID][]byte),
	}
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

func (f *fakeRepo) Get(id objectid.ID) (packfile.ObjectKind, []byte, error) {
	if b, ok := f.blobs[id]; ok {
		return packfile.KindBlob, b, nil
	}
	return 0, nil, &modelerr.MissingObjectError{ID: id.String()}
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
	f.blobs[id] = []byte(content)
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

func (f *fakeRepo) addCommit(tree objectid.ID) objectid.ID {
	id := f.nextID()
	f.commits[id] = gitobject.Commit{ID: id, Tree: tree}
	return id
}

func TestResolver_ResolveAtCommit_DirectHit(t *testing.T) {
	f := newFakeRepo()
	blob := f.addBlob(`{"version":"1.2"}`)
	root := f.addTree(entrySpec{"version.json", "100644", blob})
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	d, found, err := r.ResolveAtCommit(commit, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1.2", d.Version.String())
}

func TestResolver_ResolveAtCommit_AscendsToParentDir(t *testing.T) {
	f := newFakeRepo()
	blob := f.addBlob(`{"version":"2.0"}`)
	proj := f.addTree()
	src := f.addTree(entrySpec{"proj", "40000", proj})
	root := f.addTree(
		entrySpec{"version.json", "100644", blob},
		entrySpec{"src", "40000", src},
	)
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	d, found, err := r.ResolveAtCommit(commit, "src/proj")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.0", d.Version.String())
}

func TestResolver_ResolveAtCommit_NotFound(t *testing.T) {
	f := newFakeRepo()
	root := f.addTree()
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	_, found, err := r.ResolveAtCommit(commit, "nonexistent/path")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolver_ResolveAtCommit_VersionTxtFallback(t *testing.T) {
	f := newFakeRepo()
	blob := f.addBlob("1.2\n5\n")
	root := f.addTree(entrySpec{"version.txt", "100644", blob})
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	d, found, err := r.ResolveAtCommit(commit, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1.2", d.Version.String())
	assert.Equal(t, 5, d.VersionHeightOffset)
}

func TestResolver_ResolveAtCommit_Inherit(t *testing.T) {
	f := newFakeRepo()
	rootBlob := f.addBlob(`{"version":"1.0","nugetPackageVersion":{"semVer":2}}`)
	childBlob := f.addBlob(`{"version":"2.0","inherit":true}`)
	mod := f.addTree(entrySpec{"version.json", "100644", childBlob})
	root := f.addTree(
		entrySpec{"version.json", "100644", rootBlob},
		entrySpec{"mod", "40000", mod},
	)
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	d, found, err := r.ResolveAtCommit(commit, "mod")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.0", d.Version.String())
	require.NotNil(t, d.NuGetPackageVersion)
	assert.Equal(t, 2, d.NuGetPackageVersion.SemVer)
}

func TestResolver_ResolveAtCommit_InheritUnresolvedAtRoot(t *testing.T) {
	f := newFakeRepo()
	blob := f.addBlob(`{"version":"1.0","inherit":true}`)
	root := f.addTree(entrySpec{"version.json", "100644", blob})
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	_, _, err := r.ResolveAtCommit(commit, "")
	require.Error(t, err)
	var inheritErr *modelerr.InheritanceUnresolvedError
	assert.ErrorAs(t, err, &inheritErr)
}

func TestResolver_ResolveAtCommit_InheritDoesNotClobberParentWithChildDefaults(t *testing.T) {
	f := newFakeRepo()
	rootBlob := f.addBlob(`{"version":"1.0","gitCommitIdShortFixedLength":8}`)
	childBlob := f.addBlob(`{"version":"2.0","inherit":true}`)
	mod := f.addTree(entrySpec{"version.json", "100644", childBlob})
	root := f.addTree(
		entrySpec{"version.json", "100644", rootBlob},
		entrySpec{"mod", "40000", mod},
	)
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	d, found, err := r.ResolveAtCommit(commit, "mod")
	require.NoError(t, err)
	require.True(t, found)
	// The child never sets gitCommitIdShortFixedLength. It must inherit the
	// parent's explicit 8, not the package default of 10.
	assert.Equal(t, 8, d.GitCommitIDShortFixedLength)
}

func TestResolver_ResolveAtCommit_CachesAcrossCalls(t *testing.T) {
	f := newFakeRepo()
	blob := f.addBlob(`{"version":"1.2"}`)
	root := f.addTree(entrySpec{"version.json", "100644", blob})
	commit := f.addCommit(root)

	r := version.NewResolver(f)
	first, _, err := r.ResolveAtCommit(commit, "")
	require.NoError(t, err)
	second, _, err := r.ResolveAtCommit(commit, "")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolveAtWorkingTree_DirectAndAscending(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "version.json"), []byte(`{"version":"3.1"}`), 0o644))

	d, found, err := version.ResolveAtWorkingTree(sub, root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3.1", d.Version.String())
}

func TestResolveAtWorkingTree_VersionTxt(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "version.txt"), []byte("4.5\n"), 0o644))

	d, found, err := version.ResolveAtWorkingTree(root, root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "4.5", d.Version.String())
}

func TestResolveAtWorkingTree_NotFound(t *testing.T) {
	root := t.TempDir()
	_, found, err := version.ResolveAtWorkingTree(root, root)
	require.NoError(t, err)
	assert.False(t, found)
}
