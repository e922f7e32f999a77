// Copyright 2025 litrev Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsGetters(t *testing.T) {
	params := Params{
		NFactors:    10,
		NEpochs:     int64(30),
		Lr:          0.01,
		RandomState: 42,
	}
	assert.Equal(t, 10, params.GetInt(NFactors, 100))
	assert.Equal(t, 30, params.GetInt(NEpochs, 20))
	assert.Equal(t, float32(0.01), params.GetFloat32(Lr, 0.005))
	assert.Equal(t, int64(42), params.GetInt64(RandomState, 0))
	// missing names fall back to defaults
	assert.Equal(t, float32(0.02), params.GetFloat32(Reg, 0.02))
	assert.Equal(t, 100, Params{}.GetInt(NFactors, 100))
	// type mismatch falls back to the default
	assert.Equal(t, 20, Params{NEpochs: "twenty"}.GetInt(NEpochs, 20))
}

func TestParamsCopyOverwrite(t *testing.T) {
	params := Params{NFactors: 10, Lr: 0.01}
	copied := params.Copy()
	copied[NFactors] = 50
	assert.Equal(t, 10, params.GetInt(NFactors, 0))

	merged := params.Overwrite(Params{Lr: 0.1, Reg: 0.2})
	assert.Equal(t, float32(0.1), merged.GetFloat32(Lr, 0))
	assert.Equal(t, float32(0.2), merged.GetFloat32(Reg, 0))
	assert.Equal(t, 10, merged.GetInt(NFactors, 0))
}

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams([]byte(`{"NFactors": 8, "Lr": 0.02}`))
	assert.NoError(t, err)
	assert.Equal(t, 8, params.GetInt(NFactors, 0))
	assert.Equal(t, float32(0.02), params.GetFloat32(Lr, 0))

	params, err = DecodeParams(nil)
	assert.NoError(t, err)
	assert.Empty(t, params)

	_, err = DecodeParams([]byte(`{"Unknown": 1}`))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = DecodeParams([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidParams)

	// wrong-typed values fail instead of degrading to defaults
	_, err = DecodeParams([]byte(`{"NEpochs": "twenty"}`))
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = DecodeParams([]byte(`{"Lr": true}`))
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = DecodeParams([]byte(`{"NFactors": 2.5}`))
	assert.ErrorIs(t, err, ErrInvalidParams)
}
