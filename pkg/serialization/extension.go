package serialization

import (
	"bytes"
	"reflect"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// captureNode 把当前元素整体保存为扩展数据节点，读取器停在元素之后。
// 捕获的元素同样计入对象配额与深度。
func (ctx *ReadContext) captureNode() (contract.ExtensionNode, error) {
	if err := ctx.enter(); err != nil {
		return nil, err
	}
	defer ctx.leave()
	if err := ctx.incrementItems(1); err != nil {
		return nil, err
	}

	r := ctx.r
	header := contract.NodeHeader{
		Prefix:    r.Prefix(),
		Local:     r.LocalName(),
		Namespace: r.NamespaceURI(),
		Attrs:     slices.Clone(r.Attrs()),
	}
	if raw, ok := r.GetAttribute("type", xmlwire.InstanceNamespace); ok {
		prefix, _ := xmlwire.SplitQName(strings.TrimSpace(raw))
		header.TypeNamespace, _ = r.LookupNamespace(prefix)
	}

	if err := r.Read(); err != nil {
		return nil, err
	}
	var content []contract.RawItem
	for {
		switch r.NodeType() {
		case xmlwire.EndElement:
			if err := r.Read(); err != nil {
				return nil, err
			}
			node := classifyNode(header, content)
			if err := ctx.registerExtension(node); err != nil {
				return nil, err
			}
			return node, nil
		case xmlwire.Text:
			content = append(content, contract.RawItem{Text: r.Value()})
			if err := r.Read(); err != nil {
				return nil, err
			}
		case xmlwire.Element:
			child, err := ctx.captureNode()
			if err != nil {
				return nil, err
			}
			content = append(content, contract.RawItem{Node: child})
		default:
			return nil, merr.WrapErrWireFormat("unexpected end of document in extension data", header.Local)
		}
	}
}

// classifyNode 按内容形态归类：
// 带 z:FactoryType 为键值对序列化，混合内容、非保留属性或多个子命名空间为原始 XML，
// 只有文本为标量，同名子元素重复出现为集合，其余为类。
func classifyNode(header contract.NodeHeader, content []contract.RawItem) contract.ExtensionNode {
	children := lo.FilterMap(content, func(item contract.RawItem, _ int) (contract.ExtensionNode, bool) {
		return item.Node, item.Node != nil
	})
	hasText := lo.ContainsBy(content, func(item contract.RawItem) bool {
		return item.Node == nil && strings.TrimSpace(item.Text) != ""
	})

	if factory, ok := header.Attr("FactoryType", xmlwire.SerializationNamespace); ok && !hasText {
		return &contract.LegacyNode{NodeHeader: header, FactoryType: factory, Entries: children, Content: content}
	}
	namespaces := lo.Uniq(lo.Map(children, func(n contract.ExtensionNode, _ int) string {
		return n.Header().Namespace
	}))
	if (hasText && len(children) > 0) || hasForeignAttrs(header) || len(namespaces) > 1 {
		return &contract.RawXMLNode{NodeHeader: header, Content: content}
	}
	if len(children) == 0 {
		var sb strings.Builder
		for _, item := range content {
			sb.WriteString(item.Text)
		}
		return &contract.PrimitiveNode{NodeHeader: header, Value: sb.String()}
	}
	first := children[0].Header()
	repeated := len(children) >= 2 && lo.EveryBy(children, func(n contract.ExtensionNode) bool {
		return n.Header().Local == first.Local && n.Header().Namespace == first.Namespace
	})
	if repeated {
		return &contract.CollectionNode{NodeHeader: header, Items: children, Content: content}
	}
	return &contract.ClassNode{NodeHeader: header, Members: children, Content: content}
}

// registerExtension 把带 z:Id 的捕获节点登记到 id 表。
// 已知成员之后可能通过 z:Ref 引用它，届时再按引用处的契约读出。
func (ctx *ReadContext) registerExtension(node contract.ExtensionNode) error {
	id, ok := node.Header().Attr("Id", xmlwire.SerializationNamespace)
	if !ok {
		return nil
	}
	return ctx.ids.addExtension(id, node)
}

// readExtensionRef 把位于扩展数据中的被引用对象写成独立的文档，再按槽位契约读出。
// 读出的对象替换 id 表中的节点，之后的引用指向同一对象。
func (ctx *ReadContext) readExtensionRef(id string, node contract.ExtensionNode, slot reflect.Type, declared contract.Contract) (reflect.Value, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	w := xmlwire.NewWriter(buf)
	if err := writeNode(w, node, nil); err != nil {
		w.Discard()
		return reflect.Value{}, err
	}
	if err := w.Close(); err != nil {
		return reflect.Value{}, err
	}

	ctx.ids.forget(id)
	outer := ctx.r
	ctx.r = xmlwire.NewReader(bytes.NewReader(buf.B))
	defer func() { ctx.r = outer }()
	if _, err := ctx.r.MoveToContent(); err != nil {
		return reflect.Value{}, err
	}
	return ctx.readValue(slot, declared)
}

func hasForeignAttrs(h contract.NodeHeader) bool {
	return lo.ContainsBy(h.Attrs, func(a xmlwire.Attr) bool {
		if a.IsNamespaceDecl() {
			return false
		}
		return a.Space != xmlwire.InstanceNamespace && a.Space != xmlwire.SerializationNamespace
	})
}

// replayNode 按捕获时的开始标签原样写出节点。
// 节点中的 z:Id 会推进写端的 id 计数，保证之后分配的 id 不与之冲突。
func (ctx *WriteContext) replayNode(n contract.ExtensionNode) error {
	return writeNode(ctx.w, n, ctx.ids.observe)
}

func writeNode(w *xmlwire.Writer, n contract.ExtensionNode, observe func(id string)) error {
	h := n.Header()
	attrs := h.Attrs
	if observe != nil {
		if id, ok := h.Attr("Id", xmlwire.SerializationNamespace); ok {
			observe(id)
		}
	}
	if decl, ok := typePrefixDecl(w, h); ok {
		attrs = append(slices.Clone(attrs), decl)
	}

	w.WriteRawStartElement(h.Prefix, h.Local, h.Namespace, attrs)
	var content []contract.RawItem
	switch n := n.(type) {
	case *contract.ClassNode:
		content = contentOf(n.Content, n.Members)
	case *contract.CollectionNode:
		content = contentOf(n.Content, n.Items)
	case *contract.LegacyNode:
		content = contentOf(n.Content, n.Entries)
	case *contract.PrimitiveNode:
		w.WriteString(n.Value)
	case *contract.RawXMLNode:
		content = n.Content
	}
	for _, item := range content {
		if item.Node == nil {
			w.WriteString(item.Text)
			continue
		}
		if err := writeNode(w, item.Node, observe); err != nil {
			return err
		}
	}
	w.WriteEndElement()
	return w.Err()
}

// contentOf 在节点由调用方构造、没有原始内容时退回子元素列表。
func contentOf(content []contract.RawItem, children []contract.ExtensionNode) []contract.RawItem {
	if content != nil {
		return content
	}
	return lo.Map(children, func(n contract.ExtensionNode, _ int) contract.RawItem {
		return contract.RawItem{Node: n}
	})
}

// typePrefixDecl 在 i:type 值使用的前缀于回放位置未绑定时补充声明。
func typePrefixDecl(w *xmlwire.Writer, h *contract.NodeHeader) (xmlwire.Attr, bool) {
	raw, ok := h.Attr("type", xmlwire.InstanceNamespace)
	if !ok || h.TypeNamespace == "" {
		return xmlwire.Attr{}, false
	}
	prefix, _ := xmlwire.SplitQName(strings.TrimSpace(raw))
	if prefix == "" {
		return xmlwire.Attr{}, false
	}
	for _, a := range h.Attrs {
		if a.IsNamespaceDecl() && a.DeclaredPrefix() == prefix {
			return xmlwire.Attr{}, false
		}
	}
	if ns, bound := w.LookupNamespace(prefix); bound && ns == h.TypeNamespace {
		return xmlwire.Attr{}, false
	}
	return xmlwire.Attr{Prefix: "xmlns", Local: prefix, Space: xmlwire.XMLNSNamespace, Value: h.TypeNamespace}, true
}
