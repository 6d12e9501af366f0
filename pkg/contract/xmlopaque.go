package contract

import (
	"reflect"
)

// XMLOpaqueContract 描述自行读写 XML 片段的类型，序列化器只负责外层元素。
type XMLOpaqueContract struct {
	contractBase
}

func (s *session) deriveXMLOpaque(t reflect.Type) (*XMLOpaqueContract, error) {
	var info ContractInfo
	if explicit, ok := annotation[DataContractor](t, dataContractorType); ok {
		info = explicit.DataContract()
	}
	name, err := s.resolveStableName(t, info.Name, info.Namespace)
	if err != nil {
		return nil, err
	}
	if c, ok := s.built[t].(*XMLOpaqueContract); ok {
		return c, nil
	}
	c := &XMLOpaqueContract{
		contractBase: contractBase{
			kind:        KindXMLOpaque,
			name:        name,
			typ:         t,
			isReference: info.IsReference,
		},
	}
	s.put(t, c)
	return c, s.deriveKnownTypes(&c.contractBase, info.KnownTypes)
}
