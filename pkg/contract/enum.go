package contract

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/typeutil"
)

// EnumContract 以符号名序列化整数类型。
type EnumContract struct {
	contractBase
	members []EnumMember
	byName  map[string]int64
	flags   bool
}

// Members 按声明顺序返回枚举成员。
func (c *EnumContract) Members() []EnumMember {
	return c.members
}

// IsFlags 报告值是否按位组合。
func (c *EnumContract) IsFlags() bool {
	return c.flags
}

func (s *session) newEnumContract(t reflect.Type, info EnumInfo) (*EnumContract, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return nil, merr.WrapErrContractDefinition(t, "enum must have an integer kind")
	}
	if len(info.Members) == 0 {
		return nil, merr.WrapErrContractDefinition(t, "enum declares no members")
	}

	name, err := s.resolveStableName(t, info.Name, info.Namespace)
	if err != nil {
		return nil, err
	}
	c := &EnumContract{
		contractBase: contractBase{
			kind: KindEnum,
			name: name,
			typ:  t,
		},
		members: make([]EnumMember, 0, len(info.Members)),
		byName:  make(map[string]int64, len(info.Members)),
		flags:   info.Flags,
	}
	values := typeutil.NewSet[int64]()
	for _, m := range info.Members {
		if !isEnumToken(m.Name) {
			return nil, merr.WrapErrInvalidDataMember(t, m.Name, "enum member name must be a non-empty token")
		}
		if _, ok := c.byName[m.Name]; ok {
			return nil, merr.WrapErrDuplicateMember(t, m.Name)
		}
		if values.Contain(m.Value) {
			return nil, merr.WrapErrDuplicateEnumValue(t, m.Name, m.Value)
		}
		values.Insert(m.Value)
		c.byName[m.Name] = m.Value
		c.members = append(c.members, m)
	}
	return c, nil
}

func isEnumToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n")
}

// Encode 将枚举值编码为成员名；Flags 枚举输出以空格分隔的成员名。
func (c *EnumContract) Encode(v reflect.Value) (string, error) {
	n := enumValue(v)
	for _, m := range c.members {
		if m.Value == n {
			return m.Name, nil
		}
	}
	if !c.flags {
		return "", merr.WrapErrInvalidValue(c.typ, formatEnumValue(n), nil)
	}
	// 组合值：从声明顺序中逐个挑出完整包含的非零位。
	var names []string
	remaining := n
	for _, m := range c.members {
		if m.Value != 0 && remaining&m.Value == m.Value {
			names = append(names, m.Name)
			remaining &^= m.Value
		}
	}
	if remaining != 0 || len(names) == 0 {
		return "", merr.WrapErrInvalidValue(c.typ, formatEnumValue(n), nil)
	}
	return strings.Join(names, " "), nil
}

// Decode 将成员名解析为 Type() 类型的值。
func (c *EnumContract) Decode(text string) (reflect.Value, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return reflect.Value{}, merr.WrapErrInvalidValue(c.typ, text, nil)
	}
	if len(fields) > 1 && !c.flags {
		return reflect.Value{}, merr.WrapErrInvalidValue(c.typ, text, nil)
	}
	var n int64
	for _, f := range fields {
		value, ok := c.byName[f]
		if !ok {
			return reflect.Value{}, merr.WrapErrInvalidValue(c.typ, f, nil)
		}
		n |= value
	}
	v := reflect.New(c.typ).Elem()
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(n))
	default:
		v.SetInt(n)
	}
	return v, nil
}

func enumValue(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	default:
		return v.Int()
	}
}

func formatEnumValue(n int64) string {
	return strconv.FormatInt(n, 10)
}
