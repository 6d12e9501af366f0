package contract

import (
	"reflect"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
)

// session 是一次推导会话。会话内新建的契约先暂存，全部成功后由注册表整体发布。
type session struct {
	reg     *Registry
	built   map[reflect.Type]Contract
	order   []Contract
	classes []*ClassContract
	// naming 记录正在解析泛型参数稳定名的类型。
	naming map[reflect.Type]bool
}

func newSession(reg *Registry) *session {
	return &session{
		reg:   reg,
		built:  make(map[reflect.Type]Contract),
		naming: make(map[reflect.Type]bool),
	}
}

func (s *session) put(t reflect.Type, c Contract) {
	s.built[t] = c
	s.order = append(s.order, c)
}

// normalizeType 去掉一层指针；**T 不受支持。
func normalizeType(t reflect.Type) (reflect.Type, error) {
	if t.Kind() != reflect.Pointer {
		return t, nil
	}
	elem := t.Elem()
	if elem.Kind() == reflect.Pointer {
		return nil, merr.WrapErrUnsupportedType(t, "pointer to pointer")
	}
	return elem, nil
}

// contractOf 返回类型 t 的契约：依次查找已发布契约、本会话暂存契约，最后推导。
func (s *session) contractOf(t reflect.Type) (Contract, error) {
	t, err := normalizeType(t)
	if err != nil {
		return nil, err
	}
	if c, ok := s.reg.lookup(t); ok {
		return c, nil
	}
	if c, ok := s.built[t]; ok {
		return c, nil
	}
	return s.derive(t)
}

// derive 按固定顺序对类型分类：
// 精确内置类型、枚举、XML 自描述类型、具名标量、集合、键值对序列化类型、结构体。
func (s *session) derive(t reflect.Type) (Contract, error) {
	if t.Kind() == reflect.Interface {
		return s.deriveInterface(t)
	}
	if c, ok := lookupPrimitive(t); ok {
		return c, nil
	}
	if describer, ok := annotation[EnumDescriber](t, enumDescriberType); ok {
		c, err := s.newEnumContract(t, describer.EnumDescription())
		if err != nil {
			return nil, err
		}
		if built, ok := s.built[t]; ok {
			return built, nil
		}
		s.put(t, c)
		return c, nil
	}
	if implementsOnPointer(t, xmlSerializableType) {
		return s.deriveXMLOpaque(t)
	}
	if c, ok := primitiveByKind(t); ok {
		s.put(t, c)
		return c, nil
	}

	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr,
		reflect.Complex64, reflect.Complex128:
		return nil, merr.WrapErrUnsupportedType(t, t.Kind().String()+" cannot be serialized")
	}

	cand, ok, err := selectCollectionShape(t, collectionCandidates(t))
	if err != nil {
		return nil, err
	}
	if ok {
		return s.deriveCollection(t, cand)
	}
	if implementsOnPointer(t, serializableType) || t.Implements(serializableType) {
		return s.deriveLegacy(t)
	}
	if t.Kind() == reflect.Struct {
		if t.Name() == "" {
			return nil, merr.WrapErrUnsupportedType(t, "anonymous struct has no stable name")
		}
		return s.deriveClass(t)
	}
	return nil, merr.WrapErrUnsupportedType(t, "no data contract shape matches")
}

// deriveInterface 处理接口类型：具备集合方法的接口为只读集合，其余映射为 anyType。
func (s *session) deriveInterface(t reflect.Type) (Contract, error) {
	if t.NumMethod() > 0 {
		cand, ok, err := selectCollectionShape(t, collectionCandidates(t))
		if err != nil {
			return nil, err
		}
		if ok {
			return s.deriveCollection(t, cand)
		}
	}
	c := anyTypeFor(t)
	if c != anyTypeContract {
		s.put(t, c)
	}
	return c, nil
}

func (s *session) deriveKnownTypes(base *contractBase, types []reflect.Type) error {
	if len(types) == 0 {
		return nil
	}
	table := newKnownTypeTable()
	for _, kt := range types {
		c, err := s.contractOf(kt)
		if err != nil {
			return err
		}
		table.add(c)
	}
	base.knownTypes = table
	return nil
}

// finalize 展开全部类契约的继承链。
func (s *session) finalize() {
	for _, c := range s.classes {
		c.finalize()
	}
}

func missingConstructor(t reflect.Type) error {
	return merr.WrapErrMissingConstructor(t, "SetObjectData(*SerializationInfo) error on *"+t.Name())
}
