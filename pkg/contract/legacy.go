package contract

import (
	"reflect"
)

// LegacyContract 描述通过 SerializationInfo 键值对导出状态的类型。
// 每个键写成一个无命名空间的元素，值总是带 i:type。
type LegacyContract struct {
	contractBase
	hasObjectReference bool
	onDeserialized     bool
}

// HasObjectReference 报告反序列化后是否需要调用 GetRealObject。
func (c *LegacyContract) HasObjectReference() bool {
	return c.hasObjectReference
}

func (c *LegacyContract) HasOnDeserialized() bool {
	return c.onDeserialized
}

func (s *session) deriveLegacy(t reflect.Type) (*LegacyContract, error) {
	if !implementsOnPointer(t, deserializableType) {
		return nil, missingConstructor(t)
	}
	var info ContractInfo
	if explicit, ok := annotation[DataContractor](t, dataContractorType); ok {
		info = explicit.DataContract()
	}
	name, err := s.resolveStableName(t, info.Name, info.Namespace)
	if err != nil {
		return nil, err
	}
	if c, ok := s.built[t].(*LegacyContract); ok {
		return c, nil
	}
	c := &LegacyContract{
		contractBase: contractBase{
			kind:        KindLegacy,
			name:        name,
			typ:         t,
			isReference: info.IsReference,
		},
		hasObjectReference: implementsOnPointer(t, objectReferenceType),
		onDeserialized:     implementsOnPointer(t, deserializedHookType),
	}
	s.put(t, c)
	return c, s.deriveKnownTypes(&c.contractBase, info.KnownTypes)
}
