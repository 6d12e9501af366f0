// Package serialization 按数据契约在 Go 对象图与 XML 之间转换。
//
// 每次调用创建独立的读写上下文，契约来自共享的 contract.Registry。
// 调用失败时不会产生部分输出或部分结果。
package serialization

import (
	"context"
	"io"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/metrics"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// Serialize 把 root 写成一个 XML 文档。rootContract 为 nil 时由 root 的类型推导。
func Serialize(out io.Writer, root any, rootContract contract.Contract, opts *Options) (err error) {
	logger := operationLogger(metrics.SerializeLabel)
	start := time.Now()
	var wc *WriteContext
	defer func() {
		var items, ext int
		if wc != nil {
			items, ext = wc.items, wc.extMembers
		}
		observe(logger, metrics.SerializeLabel, start, items, ext, err)
	}()

	o, err := opts.normalize()
	if err != nil {
		return err
	}
	w := xmlwire.NewWriter(out)
	wc, err = newWriteContext(w, o, logger)
	if err != nil {
		w.Discard()
		return err
	}
	if err = wc.writeRoot(reflect.ValueOf(root), rootContract); err != nil {
		w.Discard()
		return err
	}
	return w.Close()
}

// Marshal 把 v 序列化为字节，契约由 v 的类型推导。
func Marshal(v any, opts *Options) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := Serialize(buf, v, nil, opts); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func operationLogger(operation string) *log.MLogger {
	ctx := log.WithOperation(context.Background(), operation, uuid.NewString())
	return log.Ctx(ctx).With(log.FieldModule("datacontract"), log.FieldComponent("serialization"))
}

func observe(logger *log.MLogger, operation string, start time.Time, items, extMembers int, err error) {
	metrics.OperationLatency.WithLabelValues(operation).Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.GraphItems.WithLabelValues(operation).Add(float64(items))
	if extMembers > 0 {
		metrics.ExtensionMembers.WithLabelValues(operation).Add(float64(extMembers))
	}
	if err != nil {
		metrics.OperationFailures.WithLabelValues(operation, merr.FamilyName(err)).Inc()
		logger.Warn("data contract operation failed",
			zap.Int("items", items),
			zap.Stringer("errorType", merr.GetErrorType(err)),
			zap.Bool("retriable", merr.IsRetryableErr(err)),
			zap.Error(err))
		return
	}
	logger.Debug("data contract operation done",
		zap.Int("items", items),
		zap.Int("extensionMembers", extMembers),
		zap.Duration("elapsed", time.Since(start)))
}
