package xmlwire

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
)

// NodeType 标识 Reader 当前所在节点的类型。
type NodeType int

const (
	None NodeType = iota
	Element
	EndElement
	Text
	EOF
)

func (t NodeType) String() string {
	switch t {
	case Element:
		return "Element"
	case EndElement:
		return "EndElement"
	case Text:
		return "Text"
	case EOF:
		return "EOF"
	default:
		return "None"
	}
}

// Reader 是基于 encoding/xml 原始 token 的只进读取器。
//
// 与 xml.Decoder.Token 不同，Reader 保留元素与属性的原始前缀，
// 自行维护命名空间作用域并校验开始、结束标签是否匹配。
type Reader struct {
	d *xml.Decoder

	node      NodeType
	prefix    string
	local     string
	space     string
	attrs     []Attr
	text      string
	popOnNext bool

	open   []openElement
	scopes []map[string]string
}

type openElement struct {
	prefix string
	local  string
}

// NewReader 创建从 in 读取的 Reader。
func NewReader(in io.Reader) *Reader {
	d := xml.NewDecoder(in)
	d.Strict = true
	return &Reader{d: d}
}

// NodeType 返回当前节点类型。
func (r *Reader) NodeType() NodeType { return r.node }

// LocalName 返回当前元素的本地名。
func (r *Reader) LocalName() string { return r.local }

// Prefix 返回当前元素的原始前缀。
func (r *Reader) Prefix() string { return r.prefix }

// NamespaceURI 返回当前元素解析后的命名空间。
func (r *Reader) NamespaceURI() string { return r.space }

// Attrs 返回当前元素的全部属性，保持原始顺序。
func (r *Reader) Attrs() []Attr { return r.attrs }

// Value 返回当前文本节点的内容。
func (r *Reader) Value() string { return r.text }

// Depth 返回当前节点的深度，根元素为 0。
func (r *Reader) Depth() int {
	switch r.node {
	case Element, EndElement:
		return len(r.open) - 1
	default:
		return len(r.open)
	}
}

// Read 前进到下一个节点，注释、处理指令与 DTD 会被跳过。
func (r *Reader) Read() error {
	if r.node == EOF {
		return nil
	}
	if r.popOnNext {
		r.open = r.open[:len(r.open)-1]
		r.scopes = r.scopes[:len(r.scopes)-1]
		r.popOnNext = false
	}
	for {
		tok, err := r.d.RawToken()
		if err == io.EOF {
			if len(r.open) > 0 {
				return merr.WrapErrWireFormat("unexpected end of document", "element "+r.open[len(r.open)-1].local)
			}
			r.setNode(EOF)
			return nil
		}
		if err != nil {
			return errors.Wrap(merr.WrapErrWireFormat(err.Error()), "read xml token")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return r.startElement(t)
		case xml.EndElement:
			return r.endElement(t)
		case xml.CharData:
			if len(r.open) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return merr.WrapErrWireFormat("text outside of root element")
				}
				continue
			}
			r.setNode(Text)
			r.text = string(t)
			return nil
		default:
			continue
		}
	}
}

func (r *Reader) setNode(t NodeType) {
	r.node = t
	r.prefix, r.local, r.space, r.text = "", "", "", ""
	r.attrs = nil
}

func (r *Reader) startElement(t xml.StartElement) error {
	scope := make(map[string]string)
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "xmlns":
			scope[a.Name.Local] = a.Value
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			scope[""] = a.Value
		}
	}
	r.scopes = append(r.scopes, scope)
	r.open = append(r.open, openElement{prefix: t.Name.Space, local: t.Name.Local})

	r.setNode(Element)
	r.prefix = t.Name.Space
	r.local = t.Name.Local
	ns, ok := r.LookupNamespace(r.prefix)
	if !ok {
		return merr.WrapErrWireFormat("undeclared prefix " + r.prefix)
	}
	r.space = ns

	attrs := make([]Attr, 0, len(t.Attr))
	for _, a := range t.Attr {
		attr := Attr{Prefix: a.Name.Space, Local: a.Name.Local, Value: a.Value}
		switch {
		case attr.IsNamespaceDecl():
			attr.Space = XMLNSNamespace
		case attr.Prefix != "":
			space, ok := r.LookupNamespace(attr.Prefix)
			if !ok {
				return merr.WrapErrWireFormat("undeclared prefix " + attr.Prefix)
			}
			attr.Space = space
		}
		attrs = append(attrs, attr)
	}
	r.attrs = attrs
	return nil
}

func (r *Reader) endElement(t xml.EndElement) error {
	n := len(r.open)
	if n == 0 {
		return merr.WrapErrWireFormat("unexpected end element " + t.Name.Local)
	}
	top := r.open[n-1]
	if top.prefix != t.Name.Space || top.local != t.Name.Local {
		return merr.WrapErrUnexpectedNode(top.local, t.Name.Local, "end element")
	}
	r.setNode(EndElement)
	r.prefix = top.prefix
	r.local = top.local
	r.space, _ = r.LookupNamespace(top.prefix)
	r.popOnNext = true
	return nil
}

// LookupNamespace 解析当前作用域内前缀绑定的命名空间。
func (r *Reader) LookupNamespace(prefix string) (string, bool) {
	switch prefix {
	case "xml":
		return XMLNamespace, true
	case "xmlns":
		return XMLNSNamespace, true
	}
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if ns, ok := r.scopes[i][prefix]; ok {
			return ns, true
		}
	}
	if prefix == "" {
		return "", true
	}
	return "", false
}

// MoveToContent 跳过仅包含空白的文本，停在元素、结束标签、非空文本或文档末尾。
func (r *Reader) MoveToContent() (NodeType, error) {
	if r.node == None {
		if err := r.Read(); err != nil {
			return None, err
		}
	}
	for r.node == Text && strings.TrimSpace(r.text) == "" {
		if err := r.Read(); err != nil {
			return None, err
		}
	}
	return r.node, nil
}

// IsStartElement 调用 MoveToContent 后判断是否位于指定名称的开始标签。
func (r *Reader) IsStartElement(local, ns string) (bool, error) {
	node, err := r.MoveToContent()
	if err != nil {
		return false, err
	}
	return node == Element && r.local == local && r.space == ns, nil
}

// GetAttribute 返回当前元素上位于 ns 的属性值。
func (r *Reader) GetAttribute(local, ns string) (string, bool) {
	if r.node != Element {
		return "", false
	}
	for _, a := range r.attrs {
		if a.Local == local && a.Space == ns && !a.IsNamespaceDecl() {
			return a.Value, true
		}
	}
	return "", false
}

// ReadStartElement 要求当前为开始标签并前进到其内容。
func (r *Reader) ReadStartElement() error {
	node, err := r.MoveToContent()
	if err != nil {
		return err
	}
	if node != Element {
		return merr.WrapErrUnexpectedNode("Element", node.String())
	}
	return r.Read()
}

// ReadEndElement 要求当前为结束标签并越过它。
func (r *Reader) ReadEndElement() error {
	node, err := r.MoveToContent()
	if err != nil {
		return err
	}
	if node != EndElement {
		return merr.WrapErrUnexpectedNode("EndElement", describe(r))
	}
	return r.Read()
}

// ReadElementText 读取当前元素的文本内容并越过其结束标签。
// 元素内出现子元素时返回错误。
func (r *Reader) ReadElementText() (string, error) {
	if r.node != Element {
		return "", merr.WrapErrUnexpectedNode("Element", r.node.String())
	}
	name := r.local
	if err := r.Read(); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		switch r.node {
		case Text:
			sb.WriteString(r.text)
			if err := r.Read(); err != nil {
				return "", err
			}
		case EndElement:
			if err := r.Read(); err != nil {
				return "", err
			}
			return sb.String(), nil
		default:
			return "", merr.WrapErrUnexpectedNode("text content of "+name, describe(r))
		}
	}
}

// ReadElementQName 读取内容为 "p:local" 的元素，并在离开元素作用域前解析前缀。
func (r *Reader) ReadElementQName() (xml.Name, error) {
	if r.node != Element {
		return xml.Name{}, merr.WrapErrUnexpectedNode("Element", r.node.String())
	}
	if err := r.Read(); err != nil {
		return xml.Name{}, err
	}
	var sb strings.Builder
	for r.node == Text {
		sb.WriteString(r.text)
		if err := r.Read(); err != nil {
			return xml.Name{}, err
		}
	}
	if r.node != EndElement {
		return xml.Name{}, merr.WrapErrUnexpectedNode("qualified name", describe(r))
	}
	prefix, local := SplitQName(strings.TrimSpace(sb.String()))
	ns, ok := r.LookupNamespace(prefix)
	if !ok {
		return xml.Name{}, merr.WrapErrWireFormat("undeclared prefix " + prefix)
	}
	if err := r.Read(); err != nil {
		return xml.Name{}, err
	}
	return xml.Name{Space: ns, Local: local}, nil
}

// Skip 跳过当前节点；位于开始标签时跳过整个子树。
func (r *Reader) Skip() error {
	if r.node != Element {
		return r.Read()
	}
	depth := len(r.open)
	for {
		if err := r.Read(); err != nil {
			return err
		}
		if r.node == EndElement && len(r.open) == depth {
			return r.Read()
		}
		if r.node == EOF {
			return merr.WrapErrWireFormat("unexpected end of document")
		}
	}
}

func describe(r *Reader) string {
	switch r.node {
	case Element, EndElement:
		return r.node.String() + " {" + r.space + "}" + r.local
	default:
		return r.node.String()
	}
}
