// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build !integration

package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// FormatsTestSuite exercises the structured document codecs.
type FormatsTestSuite struct {
	suite.Suite
}

// TestFormatsTestSuite runs the FormatsTestSuite.
func TestFormatsTestSuite(t *testing.T) {
	suite.Run(t, new(FormatsTestSuite))
}

func (s *FormatsTestSuite) TestRegistration() {
	for _, typ := range []Type{TypeJSON, TypeYAML, TypeYML, TypeTOML} {
		_, err := GetEncoder(typ)
		s.Require().NoError(err, typ)
		_, err = GetDecoder(typ)
		s.Require().NoError(err, typ)
	}
}

func (s *FormatsTestSuite) TestJSON_NumbersKeepTextualForm() {
	var v map[string]any
	err := JSONCodec{}.Decode([]byte(`{"timeout": 1500, "ratio": 0.25, "name": "svc"}`), &v)
	s.Require().NoError(err)

	s.Equal(json.Number("1500"), v["timeout"])
	s.Equal(json.Number("0.25"), v["ratio"])
	s.Equal("svc", v["name"])
}

func (s *FormatsTestSuite) TestJSON_DecodeError() {
	var v map[string]any
	err := JSONCodec{}.Decode([]byte(`{"broken": `), &v)
	s.Error(err)
}

func (s *FormatsTestSuite) TestYAML_RoundTrip() {
	in := map[string]any{"server": map[string]any{"port": 8080, "host": "localhost"}}
	b, err := YAMLCodec{}.Encode(in)
	s.Require().NoError(err)
	s.Contains(string(b), "port: 8080")

	var out map[string]any
	s.Require().NoError(YAMLCodec{}.Decode(b, &out))
	server, ok := out["server"].(map[string]any)
	s.Require().True(ok)
	s.Equal("localhost", server["host"])
}

func (s *FormatsTestSuite) TestYAML_DecodeError() {
	var v map[string]any
	err := YAMLCodec{}.Decode([]byte("a: [unclosed"), &v)
	s.Error(err)
}

func (s *FormatsTestSuite) TestTOML_Decode() {
	var v map[string]any
	err := TOMLCodec{}.Decode([]byte("cluster = \"blue\"\n[cache]\nfile = false\n"), &v)
	s.Require().NoError(err)
	s.Equal("blue", v["cluster"])
	cache, ok := v["cache"].(map[string]any)
	s.Require().True(ok)
	s.Equal(false, cache["file"])
}

func TestTOMLCodec_EncodeError(t *testing.T) {
	t.Parallel()

	_, err := TOMLCodec{}.Encode(make(chan int))
	require.Error(t, err)
}
