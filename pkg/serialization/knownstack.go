package serialization

import (
	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
)

// knownTypeStack 是一次调用中逐层压入的已知类型表。
// 进入一个值时压入其契约声明的已知类型，离开时弹出，查找时由内向外。
type knownTypeStack struct {
	tables []*contract.KnownTypeTable
}

// push 压入 table，返回对应的 pop；table 为空时不压栈。
func (s *knownTypeStack) push(table *contract.KnownTypeTable) func() {
	if table.Len() == 0 {
		return func() {}
	}
	s.tables = append(s.tables, table)
	n := len(s.tables)
	return func() {
		s.tables = s.tables[:n-1]
	}
}

func (s *knownTypeStack) lookup(name contract.StableName) (contract.Contract, bool) {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if c, ok := s.tables[i].Lookup(name); ok {
			return c, true
		}
	}
	return nil, false
}

func (s *knownTypeStack) contains(c contract.Contract) bool {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if s.tables[i].Contains(c) {
			return true
		}
	}
	return false
}
