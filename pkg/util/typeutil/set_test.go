// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

import (
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet[int64](1, 2)
	assert.True(t, s.Contain(1, 2))
	assert.False(t, s.Contain(1, 3))
	assert.Equal(t, 2, s.Len())

	s.Insert(2, 4)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int64{1, 2, 4}, slices.Sorted(s.All()))

	for range s.All() {
		break
	}
}

func TestConcurrentSet(t *testing.T) {
	s := NewConcurrentSet[reflect.Type]()
	intType := reflect.TypeFor[int]()
	strType := reflect.TypeFor[string]()

	assert.True(t, s.Insert(intType))
	assert.False(t, s.Insert(intType))
	assert.False(t, s.Contain(intType, strType))
	assert.True(t, s.Insert(strType))
	assert.True(t, s.Contain(intType, strType))

	names := make([]string, 0)
	for typ := range s.All() {
		names = append(names, typ.String())
	}
	slices.Sort(names)
	assert.Equal(t, []string{"int", "string"}, names)
}
