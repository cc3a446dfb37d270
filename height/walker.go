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

package height

import (
	"gitversion.dev/gitversion/internal/gitobject"
	"gitversion.dev/gitversion/internal/objectid"
	"gitversion.dev/gitversion/internal/pathfilter"
	"gitversion.dev/gitversion/version"
)

// repository is the slice of gitstore.Repository the walker needs to read
// commits and trees.
type repository interface {
	GetCommit(id objectid.ID) (gitobject.Commit, error)
	GetTree(id objectid.ID) (*gitobject.Tree, error)
}

// resolver is the slice of version.Resolver the walker needs to look up
// the descriptor visible to a commit, for version-boundary comparisons.
type resolver interface {
	ResolveAtCommit(commitID objectid.ID, projectDir string) (*version.Descriptor, bool, error)
}

// Walker computes version height over one repository, for one project
// directory and one set of compiled path filters.
type Walker struct {
	repo       repository
	resolver   resolver
	projectDir string
	filters    *pathfilter.Set
	precision  version.Precision
}

// NewWalker constructs a Walker. precision is the descriptor's
// assemblyVersion precision (defaulting to minor) the version-boundary
// comparison uses.
func NewWalker(repo repository, resolver resolver, projectDir string, filters *pathfilter.Set, precision version.Precision) *Walker {
	return &Walker{repo: repo, resolver: resolver, projectDir: projectDir, filters: filters, precision: precision}
}

// Height computes height(start): the length, in commits inclusive of
// start, of the longest simple ancestry path along which the descriptor's
// major/minor (or configured precision) is unchanged from start's own
// descriptor, and which does not cross a commit irrelevant to the
// configured path filters without contributing 0.
func (w *Walker) Height(start objectid.ID) (int, error) {
	rootDescriptor, found, err := w.resolver.ResolveAtCommit(start, w.projectDir)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	t := newTracker()
	stack := []objectid.ID{start}

	for len(stack) > 0 {
		c := stack[len(stack)-1]

		if _, ok := t.get(c); ok {
			stack = stack[:len(stack)-1]
			continue
		}

		commit, err := w.repo.GetCommit(c)
		if err != nil {
			return 0, err
		}

		maxParentHeight := 0
		var unresolved []objectid.ID
		for _, p := range commit.Parents {
			cont, err := w.shouldContinue(p, rootDescriptor)
			if err != nil {
				return 0, err
			}
			if !cont {
				continue // version boundary: this parent contributes 0
			}
			if ph, ok := t.get(p); ok {
				if ph > maxParentHeight {
					maxParentHeight = ph
				}
			} else {
				unresolved = append(unresolved, p)
			}
		}

		if len(unresolved) > 0 {
			stack = append(stack, unresolved...)
			continue
		}

		var bump int
		if len(commit.Parents) == 0 {
			if w.filters.Empty() {
				bump = 1
			} else {
				relevant, err := w.rootRelevant(commit)
				if err != nil {
					return 0, err
				}
				if relevant {
					bump = 1
				}
			}
		} else {
			relevant := w.filters.Empty()
			if !relevant {
				for _, p := range commit.Parents {
					ok, err := w.isRelevant(commit, p)
					if err != nil {
						return 0, err
					}
					if ok {
						relevant = true
						break
					}
				}
			}
			if relevant {
				bump = 1
			}
		}

		t.record(c, maxParentHeight+bump)
		stack = stack[:len(stack)-1]
	}

	h, _ := t.get(start)
	return h, nil
}

// shouldContinue implements the `continue` termination predicate: the walk
// does not cross into parent p (p's contribution is forced to 0) once p's
// descriptor would reset the height relative to the descriptor at the
// walk's starting commit. A missing descriptor is a legitimate boundary;
// a read error is not, and is returned so the caller can propagate it
// instead of silently treating a broken object store as a version
// boundary.
func (w *Walker) shouldContinue(p objectid.ID, rootDescriptor *version.Descriptor) (bool, error) {
	parentDescriptor, found, err := w.resolver.ResolveAtCommit(p, w.projectDir)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return !version.WillVersionChangeResetVersionHeight(parentDescriptor.Version, rootDescriptor.Version, w.precision), nil
}

// rootRelevant handles the "commit has no parents" case under a non-empty
// filter set: a parentless commit bumps height by 1 if the filters match
// anything it introduces (equivalently: if the filter set would consider
// its entire tree relevant, computed here as a diff against an empty
// tree).
func (w *Walker) rootRelevant(commit gitobject.Commit) (bool, error) {
	tree, err := w.repo.GetTree(commit.Tree)
	if err != nil {
		return false, err
	}
	return w.treeHasRelevantPath(tree, ""), nil
}

func (w *Walker) treeHasRelevantPath(tree *gitobject.Tree, prefix string) bool {
	for _, e := range tree.Entries {
		p := joinPath(prefix, e.Name)
		if e.Kind != gitobject.EntryTree {
			if w.filters.Matches(p) {
				return true
			}
			continue
		}
		sub, err := w.repo.GetTree(e.Target)
		if err != nil {
			continue
		}
		if w.treeHasRelevantPath(sub, p) {
			return true
		}
	}
	return false
}

// isRelevant reports whether the diff tree(parent) -> tree(commit)
// touches any path matched by the walker's filters: tree-entry equality
// on (name, kind, target id); equal subtrees are pruned without
// recursion; differing subtrees are descended; no rename detection
// (renames are delete+add).
func (w *Walker) isRelevant(commit gitobject.Commit, parent objectid.ID) (bool, error) {
	commitTree, err := w.repo.GetTree(commit.Tree)
	if err != nil {
		return false, err
	}
	parentCommit, err := w.repo.GetCommit(parent)
	if err != nil {
		return false, err
	}
	parentTree, err := w.repo.GetTree(parentCommit.Tree)
	if err != nil {
		return false, err
	}
	return w.diffRelevant(parentTree, commitTree, "")
}

func (w *Walker) diffRelevant(a, b *gitobject.Tree, prefix string) (bool, error) {
	seen := make(map[string]bool, len(a.Entries)+len(b.Entries))

	for _, be := range b.Entries {
		seen[be.Name] = true
		ae, inA := a.ByName(be.Name)
		p := joinPath(prefix, be.Name)

		if inA && ae.Kind == be.Kind && ae.Target.Equal(be.Target) {
			continue // identical subtree/blob: pruned without recursion
		}

		if be.Kind == gitobject.EntryTree && (!inA || ae.Kind == gitobject.EntryTree) {
			var subA *gitobject.Tree
			if inA {
				t, err := w.repo.GetTree(ae.Target)
				if err != nil {
					return false, err
				}
				subA = t
			} else {
				subA = &gitobject.Tree{}
			}
			subB, err := w.repo.GetTree(be.Target)
			if err != nil {
				return false, err
			}
			relevant, err := w.diffRelevant(subA, subB, p)
			if err != nil {
				return false, err
			}
			if relevant {
				return true, nil
			}
			continue
		}

		if w.filters.Matches(p) {
			return true, nil
		}
	}

	for _, ae := range a.Entries {
		if seen[ae.Name] {
			continue
		}
		p := joinPath(prefix, ae.Name)
		if ae.Kind == gitobject.EntryTree {
			subA, err := w.repo.GetTree(ae.Target)
			if err != nil {
				return false, err
			}
			relevant, err := w.diffRelevant(subA, &gitobject.Tree{}, p)
			if err != nil {
				return false, err
			}
			if relevant {
				return true, nil
			}
			continue
		}
		if w.filters.Matches(p) {
			return true, nil
		}
	}

	return false, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
