package contract

import (
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// ExtensionData 保存反序列化时遇到的未知成员，在再次序列化时原样回放。
// 结构体声明 *ExtensionData 类型的字段即可开启捕获。
type ExtensionData struct {
	Members []ExtensionMember
}

// Len 返回捕获的成员数。
func (d *ExtensionData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Members)
}

// ExtensionMember 是一个未知成员，MemberIndex 为它在已知成员序列中的插入位置。
type ExtensionMember struct {
	MemberIndex int
	Node        ExtensionNode
}

// NodeHeader 记录元素的原始开始标签，回放时逐字写出。
type NodeHeader struct {
	Prefix    string
	Local     string
	Namespace string
	Attrs     []xmlwire.Attr

	// TypeNamespace 为 i:type 值中前缀解析出的命名空间，前缀可能声明在祖先元素上。
	TypeNamespace string
}

// Attr 返回位于 ns 的非声明属性。
func (h *NodeHeader) Attr(local, ns string) (string, bool) {
	for _, a := range h.Attrs {
		if a.Local == local && a.Space == ns && !a.IsNamespaceDecl() {
			return a.Value, true
		}
	}
	return "", false
}

// ExtensionNode 是捕获元素的封闭变体：
// ClassNode、CollectionNode、LegacyNode、PrimitiveNode、RawXMLNode。
type ExtensionNode interface {
	Header() *NodeHeader
	extensionNode()
}

// ClassNode 是子元素名互不相同的元素。
// Members 是 Content 中的子元素；Content 另外保留子元素之间的空白，回放以 Content 为准。
type ClassNode struct {
	NodeHeader
	Members []ExtensionNode
	Content []RawItem
}

// CollectionNode 是子元素同名重复出现的元素。
type CollectionNode struct {
	NodeHeader
	Items   []ExtensionNode
	Content []RawItem
}

// LegacyNode 是带 z:FactoryType 的键值对元素。
type LegacyNode struct {
	NodeHeader
	FactoryType string
	Entries     []ExtensionNode
	Content     []RawItem
}

// PrimitiveNode 只包含文本（可能为空）。
type PrimitiveNode struct {
	NodeHeader
	Value string
}

// RawXMLNode 保留无法归类的内容：混合内容、非保留属性或多个子命名空间。
type RawXMLNode struct {
	NodeHeader
	Content []RawItem
}

// RawItem 为文本或子元素之一。
type RawItem struct {
	Text string
	Node ExtensionNode
}

func (n *ClassNode) Header() *NodeHeader      { return &n.NodeHeader }
func (n *CollectionNode) Header() *NodeHeader { return &n.NodeHeader }
func (n *LegacyNode) Header() *NodeHeader     { return &n.NodeHeader }
func (n *PrimitiveNode) Header() *NodeHeader  { return &n.NodeHeader }
func (n *RawXMLNode) Header() *NodeHeader     { return &n.NodeHeader }

func (*ClassNode) extensionNode()      {}
func (*CollectionNode) extensionNode() {}
func (*LegacyNode) extensionNode()     {}
func (*PrimitiveNode) extensionNode()  {}
func (*RawXMLNode) extensionNode()     {}
