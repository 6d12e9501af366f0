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
	"iter"
	"sync"
)

// Set 是基于 map 的泛型集合，零值不可用，请通过 NewSet 创建。
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

// Insert 将元素插入集合，已存在的元素忽略。
func (set Set[T]) Insert(elements ...T) {
	for _, elem := range elements {
		set[elem] = struct{}{}
	}
}

// Contain 判断元素是否都在集合中。
func (set Set[T]) Contain(elements ...T) bool {
	for _, elem := range elements {
		if _, ok := set[elem]; !ok {
			return false
		}
	}
	return true
}

func (set Set[T]) Len() int {
	return len(set)
}

// All 以无序方式遍历集合。
func (set Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for elem := range set {
			if !yield(elem) {
				return
			}
		}
	}
}

// ConcurrentSet 是可并发读写的集合，注册表用它记录显式注册的已知类型。
type ConcurrentSet[T comparable] struct {
	inner sync.Map
}

func NewConcurrentSet[T comparable]() *ConcurrentSet[T] {
	return &ConcurrentSet[T]{}
}

// Insert 插入元素，返回元素此前是否不存在。
func (set *ConcurrentSet[T]) Insert(element T) bool {
	_, exist := set.inner.LoadOrStore(element, struct{}{})
	return !exist
}

func (set *ConcurrentSet[T]) Contain(elements ...T) bool {
	for _, elem := range elements {
		if _, ok := set.inner.Load(elem); !ok {
			return false
		}
	}
	return true
}

// All 遍历当前快照，遍历期间的并发写入可能可见也可能不可见。
func (set *ConcurrentSet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		set.inner.Range(func(key, _ any) bool {
			return yield(key.(T))
		})
	}
}
