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
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uber/jaeger-client-go/utils"
)

// MLogger 在 zap.Logger 之上增加按组限流的日志输出。
//
// 解码器对未知成员、跳过的元素等高频事件使用 Rated* 系列方法，
// 同一限流组内共享额度，避免一份畸形文档刷屏。
type MLogger struct {
	*zap.Logger
	rl atomic.Value // RateLimiter
}

// With 返回携带额外字段的新 MLogger，字段在首次写日志时才编码。
// 新实例不继承原实例的限流组。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})),
	}
}

// WithRateGroup 绑定名为 groupName 的限流器；同名组共享同一个限流器，
// 后一次调用的参数会覆盖之前的配置。
func (l *MLogger) WithRateGroup(groupName string, creditPerSecond, maxBalance float64) *MLogger {
	rl := utils.NewRateLimiter(creditPerSecond, maxBalance)
	if actual, loaded := _namedRateLimiters.LoadOrStore(groupName, rl); loaded {
		rl = actual.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	}
	l.rl.Store(RateLimiter(rl))
	return l
}

func (l *MLogger) limiter() RateLimiter {
	if rl, ok := l.rl.Load().(RateLimiter); ok && rl != nil {
		return rl
	}
	return R()
}

func (l *MLogger) rated(level zapcore.Level, cost float64, msg string, fields []zap.Field) bool {
	if !l.limiter().CheckCredit(cost) {
		return false
	}
	if ce := l.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	return true
}

// RatedDebug 在限流额度足够时以 Debug 级别输出，返回是否输出。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.DebugLevel, cost, msg, fields)
}

func (l *MLogger) RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.InfoLevel, cost, msg, fields)
}

func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.WarnLevel, cost, msg, fields)
}

// Binder 嵌入到注册表、序列化器等组件中，保存组件自己的 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// Logger 返回绑定的 Logger，未绑定时退回全局 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
