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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestXmodCompare cross-checks CompareCore against x/mod/semver's own
// ordering on a battery of core versions, so a regression in one would show
// up as a disagreement between the two.
func TestXmodCompare(t *testing.T) {
	versions := []SemVer{
		{Major: 1, Minor: 0, Build: 0},
		{Major: 1, Minor: 0, Build: 1},
		{Major: 1, Minor: 1, Build: 0},
		{Major: 2, Minor: 0, Build: 0},
		{Major: 2, Minor: 0, Build: 0, Prerelease: "alpha"},
	}

	for _, a := range versions {
		for _, b := range versions {
			core := func(s SemVer) SemVer { return SemVer{Major: s.Major, Minor: s.Minor, Build: s.Build} }
			want := xmodCompare(core(a), core(b))
			got := core(a).CompareCore(core(b))
			assert.Equal(t, want, got, "CompareCore(%v, %v) disagrees with xmodCompare", a, b)
		}
	}
}

func TestValidateCore(t *testing.T) {
	assert.NoError(t, ValidateCore(1, 2, 3))
	assert.Error(t, ValidateCore(-1, 0, 0))
}

func TestSanityCheckSemVer2(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "1.2.3", true},
		{"prerelease", "1.2.3-beta.1", true},
		{"metadata", "1.2.3+gabc1234", true},
		{"prerelease and metadata", "1.2.3-beta.1+gabc1234", true},
		{"missing patch", "1.2", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanityCheckSemVer2(tt.in))
		})
	}
}
