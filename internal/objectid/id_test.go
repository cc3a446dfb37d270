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

package objectid_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gitversion.dev/gitversion/internal/objectid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lowercase", "a1b2c3d4e5f6789012345678901234567890abcd", "a1b2c3d4e5f6789012345678901234567890abcd", false},
		{"uppercase normalized", "A1B2C3D4E5F6789012345678901234567890ABCD", "a1b2c3d4e5f6789012345678901234567890abcd", false},
		{"with whitespace", "  a1b2c3d4e5f6789012345678901234567890abcd  ", "a1b2c3d4e5f6789012345678901234567890abcd", false},
		{"too short", "a1b2c3d", "", true},
		{"too long", "a1b2c3d4e5f6789012345678901234567890abcdef", "", true},
		{"non-hex", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectid.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestID_Short(t *testing.T) {
	id, err := objectid.Parse("a1b2c3d4e5f6789012345678901234567890abcd")
	require.NoError(t, err)

	assert.Equal(t, "a1b2c3d", id.Short(7))
	assert.Equal(t, "a1b2c3d4e5", id.Short(10))
	assert.Equal(t, id.String(), id.Short(objectid.HexSize))
	assert.Equal(t, "a1b2c3d", id.Short(0), "out-of-range n falls back to ShortLen")
	assert.Equal(t, "a1b2c3d", id.Short(objectid.HexSize+1))
}

func TestID_IsZero(t *testing.T) {
	var zero objectid.ID
	assert.True(t, zero.IsZero())

	id, err := objectid.Parse("a1b2c3d4e5f6789012345678901234567890abcd")
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}

func TestID_Less(t *testing.T) {
	a, err := objectid.Parse("0000000000000000000000000000000000000001")
	require.NoError(t, err)
	b, err := objectid.Parse("0000000000000000000000000000000000000002")
	require.NoError(t, err)

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestID_Truncate16(t *testing.T) {
	id, err := objectid.Parse("abcd000000000000000000000000000000000000")
	require.NoError(t, err)

	assert.Equal(t, uint16(0xabcd), id.Truncate16())
	assert.Equal(t, uint16(0xcdab), id.Truncate16LittleEndian())
}

func TestID_JSON_RoundTrip(t *testing.T) {
	original, err := objectid.Parse("a1b2c3d4e5f6789012345678901234567890abcd")
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded objectid.ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(original))
}

func TestID_YAML_RoundTrip(t *testing.T) {
	original, err := objectid.Parse("a1b2c3d4e5f6789012345678901234567890abcd")
	require.NoError(t, err)

	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var decoded objectid.ID
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(original))
}

func TestID_UnmarshalJSON_Invalid(t *testing.T) {
	var id objectid.ID
	err := json.Unmarshal([]byte(`"not-an-id"`), &id)
	assert.Error(t, err)
}
