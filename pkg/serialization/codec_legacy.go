package serialization

import (
	"reflect"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

var anyType = reflect.TypeFor[any]()

// legacyCodec 把 SerializationInfo 的每个键写成一个无命名空间的元素，值总是带 i:type。
type legacyCodec struct{}

func (legacyCodec) Write(w *xmlwire.Writer, v reflect.Value, ctx *WriteContext, c contract.Contract) error {
	lc := c.(*contract.LegacyContract)
	if err := ctx.incrementItems(1); err != nil {
		return err
	}
	s := addressable(v).Addr().Interface().(contract.Serializable)
	info := contract.NewSerializationInfo(lc.Type())
	if err := s.GetObjectData(info); err != nil {
		return merr.WrapErrHookFailed("GetObjectData", lc.Type(), err)
	}
	if ft := info.FactoryType(); ft != nil && ft != lc.Type() {
		fc, err := ctx.reg.GetContract(ft)
		if err != nil {
			return err
		}
		w.WriteQNameAttribute(xmlwire.SerializationNamespace, "FactoryType", fc.StableName().Namespace, fc.StableName().Name)
	}
	for name, value := range info.All() {
		if !xmlwire.IsNCName(name) {
			return merr.WrapErrInvalidDataMember(lc.Type(), name, "serialization info entry name is not a valid NCName")
		}
		if err := ctx.writeMember(name, "", reflect.ValueOf(value), contract.AnyType(), true); err != nil {
			return err
		}
	}
	return w.Err()
}

// Read 先确定要构造的类型（z:FactoryType 优先），登记 z:Id 后再读取键值对，
// 最后调用 SetObjectData、OnDeserialized 与 GetRealObject。
func (legacyCodec) Read(r *xmlwire.Reader, ctx *ReadContext, c contract.Contract) (reflect.Value, error) {
	lc := c.(*contract.LegacyContract)
	if err := ctx.incrementItems(1); err != nil {
		return reflect.Value{}, err
	}
	target := lc
	if raw, ok := r.GetAttribute("FactoryType", xmlwire.SerializationNamespace); ok {
		name, err := ctx.qualify(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		fc, err := ctx.resolveName(name, lc)
		if err != nil {
			return reflect.Value{}, err
		}
		factory, ok := fc.(*contract.LegacyContract)
		if !ok {
			return reflect.Value{}, merr.WrapErrLegacyTypeMismatch(lc.Type(), fc.Type())
		}
		target = factory
	}

	id := ctx.pendingID
	p := reflect.New(target.Type())
	if err := ctx.registerPending(p); err != nil {
		return reflect.Value{}, err
	}

	info := contract.NewSerializationInfo(target.Type())
	if err := r.ReadStartElement(); err != nil {
		return reflect.Value{}, err
	}
	for {
		node, err := r.MoveToContent()
		if err != nil {
			return reflect.Value{}, err
		}
		if node == xmlwire.EndElement {
			break
		}
		if node != xmlwire.Element {
			return reflect.Value{}, merr.WrapErrUnexpectedNode("serialization info entry", node.String())
		}
		name := r.LocalName()
		value, err := ctx.readValue(anyType, contract.AnyType())
		if err != nil {
			return reflect.Value{}, err
		}
		if err := info.AddValue(name, value.Interface()); err != nil {
			return reflect.Value{}, err
		}
	}
	if err := r.ReadEndElement(); err != nil {
		return reflect.Value{}, err
	}

	if err := p.Interface().(contract.Deserializable).SetObjectData(info); err != nil {
		return reflect.Value{}, merr.WrapErrHookFailed("SetObjectData", target.Type(), err)
	}
	if target.HasOnDeserialized() {
		if err := p.Interface().(contract.DeserializedHook).OnDeserialized(); err != nil {
			return reflect.Value{}, merr.WrapErrHookFailed("OnDeserialized", target.Type(), err)
		}
	}
	if target.HasObjectReference() {
		return ctx.realObject(p, id, target.Type())
	}
	return p, nil
}
