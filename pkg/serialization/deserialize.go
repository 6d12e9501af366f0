package serialization

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/metrics"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// Deserialize 读取一个 XML 文档并返回新构造的根对象。
//
// 根契约为接口类型时返回对象本身，否则返回指向 rootContract.Type() 新值的指针
// （GetRealObject 替换后的对象除外）；根元素为 i:nil 时返回 nil。
func Deserialize(in io.Reader, rootContract contract.Contract, opts *Options) (result any, err error) {
	logger := operationLogger(metrics.DeserializeLabel)
	start := time.Now()
	var rc *ReadContext
	defer func() {
		var items, ext int
		if rc != nil {
			items, ext = rc.items, rc.extMembers
		}
		observe(logger, metrics.DeserializeLabel, start, items, ext, err)
	}()

	if rootContract == nil {
		return nil, merr.WrapErrParameterInvalidMsg("root contract is nil")
	}
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	rc, err = newReadContext(xmlwire.NewReader(in), o, logger)
	if err != nil {
		return nil, err
	}
	v, err := rc.readRoot(rootContract)
	if err != nil {
		return nil, err
	}
	if isNilValue(v) {
		return nil, nil
	}
	return v.Interface(), nil
}

// Unmarshal 把 data 反序列化到 v 指向的值中，契约由 v 的元素类型推导。
// 根对象会被复制到 *v，需要保留根对象自身身份的循环图应使用 Deserialize。
func Unmarshal(data []byte, v any, opts *Options) error {
	rv, err := unmarshalTarget(v)
	if err != nil {
		return err
	}
	o, err := opts.normalize()
	if err != nil {
		return err
	}
	target := rv.Elem()
	c, err := o.Registry.GetContract(target.Type())
	if err != nil {
		return err
	}
	return unmarshalInto(data, target, c, &o)
}

// unmarshalTarget 要求 v 为非 nil 指针。
func unmarshalTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv, nil
	}
	actual := fmt.Sprintf("%T", v)
	if rv.Kind() == reflect.Pointer {
		actual = "nil " + actual
	}
	return reflect.Value{}, merr.WrapErrParameterInvalid("non-nil pointer", actual, "unmarshal target")
}

func unmarshalInto(data []byte, target reflect.Value, c contract.Contract, opts *Options) error {
	result, err := Deserialize(bytes.NewReader(data), c, opts)
	if err != nil {
		return err
	}
	out, err := convertTo(reflect.ValueOf(result), target.Type())
	if err != nil {
		return err
	}
	target.Set(out)
	return nil
}
