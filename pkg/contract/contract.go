// Package contract 从 Go 类型推导数据契约，并在注册表中缓存。
//
// 契约是一个封闭的变体：Primitive、Enum、Collection、Class、Legacy、XMLOpaque。
// 契约一经发布即不可变，可被任意多个序列化调用并发共享。
package contract

import (
	"reflect"
	"strings"
)

// Kind 标识契约的种类。
type Kind int

const (
	KindPrimitive Kind = iota
	KindEnum
	KindCollection
	KindClass
	KindLegacy
	KindXMLOpaque
)

var kindNames = map[Kind]string{
	KindPrimitive:  "primitive",
	KindEnum:       "enum",
	KindCollection: "collection",
	KindClass:      "class",
	KindLegacy:     "legacy",
	KindXMLOpaque:  "xml_opaque",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// StableName 是契约在线格式上的身份，与 Go 类型名无关。
type StableName struct {
	Name      string
	Namespace string
}

func (n StableName) String() string {
	return "{" + n.Namespace + "}" + n.Name
}

func (n StableName) IsZero() bool {
	return n.Name == "" && n.Namespace == ""
}

// Contract 描述一个类型如何映射到线格式。
type Contract interface {
	Kind() Kind
	StableName() StableName
	// Type 返回去掉一层指针后的 Go 类型。
	Type() reflect.Type
	// IsValueType 报告该类型的值是否按拷贝传递；结构体只有经由指针持有时才具备身份。
	IsValueType() bool
	// IsReference 报告契约是否无论调用方选项如何都保留引用。
	IsReference() bool
	// TopLevelElement 返回作为根元素时使用的名称。
	TopLevelElement() StableName
	// KnownTypes 返回契约声明的已知类型表，可能为 nil。
	KnownTypes() *KnownTypeTable

	sealed()
}

type contractBase struct {
	kind        Kind
	name        StableName
	typ         reflect.Type
	isReference bool
	topLevel    StableName
	knownTypes  *KnownTypeTable
}

func (b *contractBase) Kind() Kind                  { return b.kind }
func (b *contractBase) StableName() StableName      { return b.name }
func (b *contractBase) Type() reflect.Type          { return b.typ }
func (b *contractBase) IsReference() bool           { return b.isReference }
func (b *contractBase) KnownTypes() *KnownTypeTable { return b.knownTypes }
func (b *contractBase) sealed()                     {}

func (b *contractBase) IsValueType() bool {
	return b.typ.Kind() != reflect.Map
}

func (b *contractBase) TopLevelElement() StableName {
	if b.topLevel.IsZero() {
		return b.name
	}
	return b.topLevel
}

// KnownTypeTable 是某个契约声明的已知类型，按稳定名索引。
type KnownTypeTable struct {
	byName map[StableName]Contract
	order  []Contract
}

func newKnownTypeTable() *KnownTypeTable {
	return &KnownTypeTable{byName: make(map[StableName]Contract)}
}

func (t *KnownTypeTable) add(c Contract) {
	if _, ok := t.byName[c.StableName()]; ok {
		return
	}
	t.byName[c.StableName()] = c
	t.order = append(t.order, c)
}

// Lookup 按稳定名查找已知类型。
func (t *KnownTypeTable) Lookup(name StableName) (Contract, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.byName[name]
	return c, ok
}

// Contains 判断 c 是否是表中的已知类型。
func (t *KnownTypeTable) Contains(c Contract) bool {
	found, ok := t.Lookup(c.StableName())
	return ok && found.Type() == c.Type()
}

// Contracts 按声明顺序返回全部已知类型。
func (t *KnownTypeTable) Contracts() []Contract {
	if t == nil {
		return nil
	}
	return t.order
}

func (t *KnownTypeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Describe 返回便于日志与错误信息使用的契约描述。
func Describe(c Contract) string {
	if c == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(c.Kind().String())
	sb.WriteString(" ")
	sb.WriteString(c.StableName().String())
	if t := c.Type(); t != nil {
		sb.WriteString(" (")
		sb.WriteString(t.String())
		sb.WriteString(")")
	}
	return sb.String()
}
