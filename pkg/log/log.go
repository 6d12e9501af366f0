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

// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _globalL, _globalP, _globalR atomic.Value

// _levelLoggers 按级别缓存由 debug Logger 派生的 Logger，供 ctxL 使用。
var _levelLoggers sync.Map

var _namedRateLimiters sync.Map

// RateLimiter 是限频日志使用的令牌桶接口。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

func init() {
	conf := &Config{Level: "debug", Stdout: true, DisableErrorVerbose: true}
	l, p, _ := InitLogger(conf, zap.OnFatal(zapcore.WriteThenPanic))
	_globalL.Store(l)
	_globalP.Store(p)
	_globalR.Store(rateLimiterFromEnv())
}

// InitLogger 按配置创建 Logger，输出到文件和（或）标准输出。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var outputs []zapcore.WriteSyncer
	if len(cfg.File.Filename) > 0 {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
	}
	if cfg.Stdout {
		stdOut, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, stdOut)
	}

	// core 始终以 debug 级别创建，实际级别由 ZapProperties.Level 控制。
	debugCfg := *cfg
	debugCfg.Level = "debug"
	debugL, props, err := InitLoggerWithWriteSyncer(&debugCfg, zap.CombineWriteSyncers(outputs...), opts...)
	if err != nil {
		return nil, nil, err
	}
	storeLevelLoggers(debugL)

	level := cfg.Level
	if strings.EqualFold(level, "trace") {
		level = "debug"
	}
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, err
	}
	props.Level.SetLevel(parsed)
	return debugL.WithOptions(zap.AddCallerSkip(1)), props, nil
}

// InitTestLogger 创建写入 t.Log 的 Logger，zap 内部错误会使测试失败。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	opts = append([]zap.Option{zap.ErrorOutput(newTestingWriter(t, true))}, opts...)
	return InitLoggerWithWriteSyncer(cfg, newTestingWriter(t, false), opts...)
}

// InitLoggerWithWriteSyncer 创建写入 output 的 Logger。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	core := zapcore.NewCore(newZapEncoder(cfg), output, level)
	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

// initFileLog 创建由 lumberjack 负责滚动的日志文件。
func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	logPath := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(logPath); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", logPath)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// L 返回全局 Logger，可通过 ReplaceGlobals 替换。
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// R 返回限频日志使用的全局令牌桶，未启用限频时返回不丢弃日志的实现。
func R() RateLimiter {
	if rl, ok := _globalR.Load().(RateLimiter); ok && rl != nil {
		return rl
	}
	return nopRateLimiter{}
}

// ctxL 返回与当前全局级别对应的 Logger。
func ctxL() *zap.Logger {
	level := _globalP.Load().(*ZapProperties).Level.Level()
	if l, ok := _levelLoggers.Load(level); ok {
		return l.(*zap.Logger)
	}
	return L()
}

// ReplaceGlobals 替换全局 Logger 及其属性。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalP.Store(props)
}

func storeLevelLoggers(debugL *zap.Logger) {
	for level := zapcore.DebugLevel; level <= zapcore.FatalLevel; level++ {
		_levelLoggers.Store(level, debugL.WithOptions(zap.IncreaseLevel(level)))
	}
}

// rateLimiterFromEnv 读取 ZEUS_LOG_RATE_* 环境变量：
// ZEUS_LOG_RATE_ENABLE 默认关闭，ZEUS_LOG_RATE_CREDIT_PER_SECOND 默认 1，ZEUS_LOG_RATE_MAX_BALANCE 默认 60。
func rateLimiterFromEnv() RateLimiter {
	if !getenvBool("ZEUS_LOG_RATE_ENABLE", false) {
		return nopRateLimiter{}
	}
	credit := getenvFloat("ZEUS_LOG_RATE_CREDIT_PER_SECOND", 1.0)
	maxBalance := getenvFloat("ZEUS_LOG_RATE_MAX_BALANCE", 60.0)
	return utils.NewRateLimiter(credit, maxBalance)
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return f
}
