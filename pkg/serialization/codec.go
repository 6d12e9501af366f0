package serialization

import (
	"encoding/xml"
	"reflect"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// Codec 读写某一种契约的元素内容。
type Codec interface {
	// Write 写出 v 的内容。调用时元素的开始标签已经写出且仍可追加属性，
	// v 已去掉指针与接口，类型为 c.Type()。
	Write(w *xmlwire.Writer, v reflect.Value, ctx *WriteContext, c contract.Contract) error
	// Read 从元素的开始标签读到其结束标签。
	// 类、键值对序列化与 XML 自描述契约返回指向新对象的指针，其余契约返回值本身。
	Read(r *xmlwire.Reader, ctx *ReadContext, c contract.Contract) (reflect.Value, error)
}

var (
	primitives  Codec = primitiveCodec{}
	enums       Codec = enumCodec{}
	collections Codec = collectionCodec{}
	classes     Codec = classCodec{}
	legacies    Codec = legacyCodec{}
	xmlOpaques  Codec = xmlOpaqueCodec{}
)

// CodecFor 返回契约种类对应的编解码器。
func CodecFor(c contract.Contract) Codec {
	switch c.(type) {
	case *contract.PrimitiveContract:
		return primitives
	case *contract.EnumContract:
		return enums
	case *contract.CollectionContract:
		return collections
	case *contract.ClassContract:
		return classes
	case *contract.LegacyContract:
		return legacies
	case *contract.XMLOpaqueContract:
		return xmlOpaques
	default:
		panic("unknown data contract kind " + c.Kind().String())
	}
}

var xmlNameType = reflect.TypeFor[xml.Name]()

type primitiveCodec struct{}

func (primitiveCodec) Write(w *xmlwire.Writer, v reflect.Value, _ *WriteContext, c contract.Contract) error {
	pc := c.(*contract.PrimitiveContract)
	switch {
	case pc.IsAnyType():
		// 没有具体类型的空对象。
		return nil
	case pc.IsQName():
		name := v.Convert(xmlNameType).Interface().(xml.Name)
		if name.Space == "" {
			w.WriteString(name.Local)
			return nil
		}
		prefix := w.EnsurePrefix(name.Space)
		w.WriteString(prefix + ":" + name.Local)
		return nil
	}
	text, err := pc.Encode(v)
	if err != nil {
		return err
	}
	w.WriteString(text)
	return nil
}

func (primitiveCodec) Read(r *xmlwire.Reader, _ *ReadContext, c contract.Contract) (reflect.Value, error) {
	pc := c.(*contract.PrimitiveContract)
	switch {
	case pc.IsAnyType():
		text, err := r.ReadElementText()
		if err != nil {
			return reflect.Value{}, err
		}
		if text == "" {
			return reflect.Zero(pc.Type()), nil
		}
		// 没有 i:type 的 any 成员按字符串处理。
		if pc.Type() == contract.AnyType().Type() {
			return reflect.ValueOf(text), nil
		}
		return reflect.Value{}, merr.WrapErrUnknownType("", "",
			"element without i:type cannot populate interface "+pc.Type().String())
	case pc.IsQName():
		name, err := r.ReadElementQName()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(name).Convert(pc.Type()), nil
	}
	text, err := r.ReadElementText()
	if err != nil {
		return reflect.Value{}, err
	}
	return pc.Decode(text)
}

type enumCodec struct{}

func (enumCodec) Write(w *xmlwire.Writer, v reflect.Value, _ *WriteContext, c contract.Contract) error {
	text, err := c.(*contract.EnumContract).Encode(v)
	if err != nil {
		return err
	}
	w.WriteString(text)
	return nil
}

func (enumCodec) Read(r *xmlwire.Reader, _ *ReadContext, c contract.Contract) (reflect.Value, error) {
	text, err := r.ReadElementText()
	if err != nil {
		return reflect.Value{}, err
	}
	return c.(*contract.EnumContract).Decode(text)
}

type xmlOpaqueCodec struct{}

func (xmlOpaqueCodec) Write(w *xmlwire.Writer, v reflect.Value, _ *WriteContext, c contract.Contract) error {
	x := addressable(v).Addr().Interface().(contract.XMLSerializable)
	if err := x.WriteXML(w); err != nil {
		return merr.WrapErrHookFailed("WriteXML", c.Type(), err)
	}
	return w.Err()
}

func (xmlOpaqueCodec) Read(r *xmlwire.Reader, ctx *ReadContext, c contract.Contract) (reflect.Value, error) {
	p := reflect.New(c.Type())
	if err := ctx.registerPending(p); err != nil {
		return reflect.Value{}, err
	}
	if err := p.Interface().(contract.XMLSerializable).ReadXML(r); err != nil {
		return reflect.Value{}, merr.WrapErrHookFailed("ReadXML", c.Type(), err)
	}
	return p, nil
}
