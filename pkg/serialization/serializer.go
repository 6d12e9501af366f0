package serialization

import (
	"io"
	"reflect"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/log"
)

// Serializer 抽象了“对象 <-> 字节流”的序列化能力。
type Serializer interface {
	// Marshal 将对象编码为字节序列。
	Marshal(v any) ([]byte, error)
	// Unmarshal 将字节序列解码到 v 指向的对象中。
	Unmarshal(data []byte, v any) error
}

// 编译期断言：确保 DataContractSerializer 实现了 Serializer 接口。
var _ Serializer = (*DataContractSerializer)(nil)

// DataContractSerializer 绑定一个根类型与一组选项，可以被多个 goroutine 同时使用。
type DataContractSerializer struct {
	log.Binder

	root contract.Contract
	opts Options
}

// NewDataContractSerializer 推导根类型 t 的契约并校验选项。
func NewDataContractSerializer(t reflect.Type, opts *Options) (*DataContractSerializer, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	c, err := o.Registry.GetContract(t)
	if err != nil {
		return nil, err
	}
	if _, err := resolveAdditionalKnownTypes(o.Registry, o.AdditionalKnownTypes); err != nil {
		return nil, err
	}
	s := &DataContractSerializer{root: c, opts: o}
	s.SetLogger(log.With(log.FieldModule("datacontract"), log.FieldComponent("serializer")))
	s.Logger().Debug("data contract serializer created",
		zap.Stringer("type", t),
		log.FieldStableName(c.StableName().Name, c.StableName().Namespace))
	return s, nil
}

// Contract 返回根契约。
func (s *DataContractSerializer) Contract() contract.Contract {
	return s.root
}

// WriteObject 把 v 按根契约写到 out。
func (s *DataContractSerializer) WriteObject(out io.Writer, v any) error {
	return Serialize(out, v, s.root, &s.opts)
}

// ReadObject 从 in 读取一个根对象，返回值的形式与 Deserialize 相同。
func (s *DataContractSerializer) ReadObject(in io.Reader) (any, error) {
	return Deserialize(in, s.root, &s.opts)
}

func (s *DataContractSerializer) Marshal(v any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := s.WriteObject(buf, v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

// Unmarshal 要求 v 为指向根类型（或其可赋值类型）的非 nil 指针。
func (s *DataContractSerializer) Unmarshal(data []byte, v any) error {
	rv, err := unmarshalTarget(v)
	if err != nil {
		return err
	}
	return unmarshalInto(data, rv.Elem(), s.root, &s.opts)
}
