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

package log

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// lazyWithCore 推迟 core.With 的字段编码，直到第一次真正需要派生 core。
// 每次序列化调用都会派生带操作 ID 的 Logger，而大多数调用不会输出日志。
// 参考 https://github.com/uber-go/zap/issues/1426 。
type lazyWithCore struct {
	core   atomic.Pointer[zapcore.Core]
	once   sync.Once
	fields []zapcore.Field
}

var _ zapcore.Core = (*lazyWithCore)(nil)

// NewLazyWith 返回在首次 Check、With 或 Sync 时才附加 fields 的 core。
func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	c := &lazyWithCore{fields: fields}
	c.core.Store(&core)
	return c
}

func (c *lazyWithCore) materialize() zapcore.Core {
	c.once.Do(func() {
		derived := (*c.core.Load()).With(c.fields)
		c.core.Store(&derived)
	})
	return *c.core.Load()
}

// Enabled 只读级别，不触发字段编码。
func (c *lazyWithCore) Enabled(level zapcore.Level) bool {
	return (*c.core.Load()).Enabled(level)
}

func (c *lazyWithCore) With(fields []zapcore.Field) zapcore.Core {
	return c.materialize().With(fields)
}

func (c *lazyWithCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.materialize().Check(e, ce)
}

// Write 只会在 Check 之后被调用，此时 core 已经附加了字段。
func (c *lazyWithCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return (*c.core.Load()).Write(e, fields)
}

func (c *lazyWithCore) Sync() error {
	return c.materialize().Sync()
}
