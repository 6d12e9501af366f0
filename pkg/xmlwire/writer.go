package xmlwire

import (
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
)

// Writer 是一个只进的 XML 写入器。
//
// 开始标签在第一个内容写入前保持打开，期间可以继续追加属性；
// 没有任何内容的元素以 <x/> 的形式闭合。所有输出先写入池化缓冲区，
// 在 Flush 时一次性写到底层 io.Writer。
type Writer struct {
	out   io.Writer
	buf   *bytebufferpool.ByteBuffer
	stack []*writeScope
	open  bool
	err   error
}

type writeScope struct {
	prefix    string
	local     string
	defaultNS string
	prefixes  map[string]string
	generated int
}

// NewWriter 创建写入 out 的 Writer，使用完毕后需要调用 Close 归还缓冲区。
func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out: out,
		buf: bytebufferpool.Get(),
	}
}

// Depth 返回当前打开的元素层数。
func (w *Writer) Depth() int {
	return len(w.stack)
}

// Err 返回写入过程中记录的第一个错误。
func (w *Writer) Err() error {
	return w.err
}

// WriteStartElement 写入位于命名空间 ns 的元素开始标签。
// ns 与继承的默认命名空间不同时写出 xmlns 声明。
func (w *Writer) WriteStartElement(local, ns string) {
	if w.err != nil {
		return
	}
	w.closeStart()
	parentDefault := w.defaultNamespace()
	sc := &writeScope{local: local, defaultNS: parentDefault}
	w.stack = append(w.stack, sc)
	w.open = true

	w.buf.WriteString("<")
	w.buf.WriteString(local)
	if ns != parentDefault {
		w.writeRawAttr("", "xmlns", ns)
		sc.defaultNS = ns
	}
}

// WriteRawStartElement 按原样写出一个带前缀的开始标签及其属性，用于回放捕获的数据。
// 属性中的 xmlns 声明会进入作用域；仍未绑定的前缀会被补充声明。
func (w *Writer) WriteRawStartElement(prefix, local, ns string, attrs []Attr) {
	if w.err != nil {
		return
	}
	w.closeStart()
	sc := &writeScope{prefix: prefix, local: local, defaultNS: w.defaultNamespace()}
	w.stack = append(w.stack, sc)
	w.open = true

	w.buf.WriteString("<")
	if prefix != "" {
		w.buf.WriteString(prefix)
		w.buf.WriteString(":")
	}
	w.buf.WriteString(local)

	for _, attr := range attrs {
		if attr.IsNamespaceDecl() {
			w.declare(attr.DeclaredPrefix(), attr.Value)
		}
		w.writeRawAttr(attr.Prefix, attr.Local, attr.Value)
	}

	w.ensureBound(prefix, ns)
	for _, attr := range attrs {
		if attr.Prefix != "" && !attr.IsNamespaceDecl() {
			w.ensureBound(attr.Prefix, attr.Space)
		}
	}
}

// WriteNamespaceDeclaration 在当前开始标签上声明前缀，prefix 为空时声明默认命名空间。
func (w *Writer) WriteNamespaceDeclaration(prefix, ns string) {
	if !w.requireOpen("namespace declaration") {
		return
	}
	if prefix == "" {
		w.writeRawAttr("", "xmlns", ns)
	} else {
		w.writeRawAttr("xmlns", prefix, ns)
	}
	w.declare(prefix, ns)
}

// WriteAttribute 写入无命名空间的属性。
func (w *Writer) WriteAttribute(local, value string) {
	if !w.requireOpen("attribute") {
		return
	}
	w.writeRawAttr("", local, value)
}

// WriteQualifiedAttribute 写入位于命名空间 ns 的属性，必要时自动声明前缀。
func (w *Writer) WriteQualifiedAttribute(ns, local, value string) {
	if !w.requireOpen("attribute") {
		return
	}
	if ns == "" {
		w.writeRawAttr("", local, value)
		return
	}
	prefix, ok := w.findPrefix(ns)
	if !ok {
		prefix = w.generatePrefix()
		w.writeRawAttr("xmlns", prefix, ns)
		w.declare(prefix, ns)
	}
	w.writeRawAttr(prefix, local, value)
}

// WriteQNameAttribute 写入值为限定名的属性，例如 i:type="d2p1:Person"。
// 值的命名空间尚未绑定时，在属性之后声明新的前缀。
func (w *Writer) WriteQNameAttribute(attrNS, attrLocal, valueNS, valueLocal string) {
	if !w.requireOpen("attribute") {
		return
	}
	attrPrefix := ""
	if attrNS != "" {
		var ok bool
		attrPrefix, ok = w.findPrefix(attrNS)
		if !ok {
			attrPrefix = w.generatePrefix()
			w.writeRawAttr("xmlns", attrPrefix, attrNS)
			w.declare(attrPrefix, attrNS)
		}
	}
	if valueNS == "" {
		w.writeRawAttr(attrPrefix, attrLocal, valueLocal)
		return
	}
	valuePrefix, ok := w.findPrefix(valueNS)
	if ok {
		w.writeRawAttr(attrPrefix, attrLocal, valuePrefix+":"+valueLocal)
		return
	}
	valuePrefix = w.generatePrefix()
	w.writeRawAttr(attrPrefix, attrLocal, valuePrefix+":"+valueLocal)
	w.writeRawAttr("xmlns", valuePrefix, valueNS)
	w.declare(valuePrefix, valueNS)
}

// EnsurePrefix 返回绑定到 ns 的前缀，未绑定时在当前开始标签上声明一个新前缀。
func (w *Writer) EnsurePrefix(ns string) string {
	if prefix, ok := w.findPrefix(ns); ok {
		return prefix
	}
	if !w.requireOpen("namespace declaration") {
		return ""
	}
	prefix := w.generatePrefix()
	w.writeRawAttr("xmlns", prefix, ns)
	w.declare(prefix, ns)
	return prefix
}

// WriteString 写入转义后的文本内容，空串不会闭合开始标签。
func (w *Writer) WriteString(text string) {
	if w.err != nil || text == "" {
		return
	}
	if len(w.stack) == 0 {
		w.fail(merr.WrapErrWireFormat("text outside of root element"))
		return
	}
	w.closeStart()
	w.escape(text, false)
}

// WriteEndElement 闭合最近打开的元素。
func (w *Writer) WriteEndElement() {
	if w.err != nil {
		return
	}
	n := len(w.stack)
	if n == 0 {
		w.fail(merr.WrapErrWireFormat("end element without matching start"))
		return
	}
	sc := w.stack[n-1]
	w.stack = w.stack[:n-1]
	if w.open {
		w.buf.WriteString("/>")
		w.open = false
		return
	}
	w.buf.WriteString("</")
	if sc.prefix != "" {
		w.buf.WriteString(sc.prefix)
		w.buf.WriteString(":")
	}
	w.buf.WriteString(sc.local)
	w.buf.WriteString(">")
}

// LookupPrefix 返回当前作用域内绑定到 ns 的前缀。
func (w *Writer) LookupPrefix(ns string) (string, bool) {
	return w.findPrefix(ns)
}

// LookupNamespace 返回当前作用域内 prefix 绑定的命名空间。
func (w *Writer) LookupNamespace(prefix string) (string, bool) {
	return w.lookupNamespace(prefix)
}

// Flush 将缓冲内容写到底层 io.Writer。
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.buf == nil {
		return merr.WrapErrWireFormat("writer already closed")
	}
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.out.Write(w.buf.B); err != nil {
		w.err = errors.Wrap(err, "flush xml writer")
		return w.err
	}
	w.buf.Reset()
	return nil
}

// Close 刷新缓冲并归还到池中，Close 之后 Writer 不可再用。
func (w *Writer) Close() error {
	if w.buf == nil {
		return nil
	}
	err := w.Flush()
	bytebufferpool.Put(w.buf)
	w.buf = nil
	return err
}

// Discard 丢弃尚未刷新的内容并归还缓冲区，用于出错后不留下半截输出。
func (w *Writer) Discard() {
	if w.buf == nil {
		return
	}
	bytebufferpool.Put(w.buf)
	w.buf = nil
	w.stack = nil
	w.open = false
}

func (w *Writer) closeStart() {
	if w.open {
		w.buf.WriteString(">")
		w.open = false
	}
}

func (w *Writer) requireOpen(what string) bool {
	if w.err != nil {
		return false
	}
	if !w.open {
		w.fail(merr.WrapErrWireFormat(what + " written after element content"))
		return false
	}
	return true
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) writeRawAttr(prefix, local, value string) {
	w.buf.WriteString(" ")
	if prefix != "" {
		w.buf.WriteString(prefix)
		w.buf.WriteString(":")
	}
	w.buf.WriteString(local)
	w.buf.WriteString(`="`)
	w.escape(value, true)
	w.buf.WriteString(`"`)
}

// escape 转义并写出文本。文本内容中的换行与制表符原样保留，属性值中的则转义，
// 以免被读取端的属性值规范化替换为空格。XML 1.0 无法表示的字符使写入失败。
func (w *Writer) escape(s string, attr bool) {
	if i, ok := invalidChar(s); ok {
		w.fail(merr.WrapErrInvalidValue("string", s,
			errors.Newf("byte offset %d holds a character XML 1.0 cannot represent", i)))
		return
	}
	last := 0
	for i := 0; i < len(s); i++ {
		var esc string
		switch s[i] {
		case '&':
			esc = "&amp;"
		case '<':
			esc = "&lt;"
		case '>':
			esc = "&gt;"
		case '\r':
			esc = "&#xD;"
		case '"':
			if attr {
				esc = "&quot;"
			}
		case '\n':
			if attr {
				esc = "&#xA;"
			}
		case '\t':
			if attr {
				esc = "&#x9;"
			}
		}
		if esc == "" {
			continue
		}
		w.buf.WriteString(s[last:i])
		w.buf.WriteString(esc)
		last = i + 1
	}
	w.buf.WriteString(s[last:])
}

// invalidChar 返回第一个非法 UTF-8 序列或 XML 1.0 Char 之外字符的位置。
func invalidChar(s string) (int, bool) {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return i, true
			}
		}
		if !isXMLChar(r) {
			return i, true
		}
	}
	return 0, false
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	}
	return r >= 0x10000 && r <= utf8.MaxRune
}

func (w *Writer) defaultNamespace() string {
	if n := len(w.stack); n > 0 {
		return w.stack[n-1].defaultNS
	}
	return ""
}

func (w *Writer) declare(prefix, ns string) {
	n := len(w.stack)
	if n == 0 {
		return
	}
	sc := w.stack[n-1]
	if prefix == "" {
		sc.defaultNS = ns
		return
	}
	if sc.prefixes == nil {
		sc.prefixes = make(map[string]string, 2)
	}
	sc.prefixes[prefix] = ns
}

func (w *Writer) lookupNamespace(prefix string) (string, bool) {
	switch prefix {
	case "":
		return w.defaultNamespace(), true
	case "xml":
		return XMLNamespace, true
	case "xmlns":
		return XMLNSNamespace, true
	}
	for i := len(w.stack) - 1; i >= 0; i-- {
		if ns, ok := w.stack[i].prefixes[prefix]; ok {
			return ns, true
		}
	}
	return "", false
}

func (w *Writer) findPrefix(ns string) (string, bool) {
	if ns == XMLNamespace {
		return "xml", true
	}
	for i := len(w.stack) - 1; i >= 0; i-- {
		for prefix, bound := range w.stack[i].prefixes {
			if bound != ns {
				continue
			}
			// 内层可能用同名前缀覆盖了外层绑定。
			if actual, _ := w.lookupNamespace(prefix); actual == ns {
				return prefix, true
			}
		}
	}
	return "", false
}

func (w *Writer) ensureBound(prefix, ns string) {
	if prefix == "xml" || prefix == "xmlns" {
		return
	}
	if actual, ok := w.lookupNamespace(prefix); ok && actual == ns {
		return
	}
	if prefix == "" {
		w.writeRawAttr("", "xmlns", ns)
	} else {
		w.writeRawAttr("xmlns", prefix, ns)
	}
	w.declare(prefix, ns)
}

func (w *Writer) generatePrefix() string {
	sc := w.stack[len(w.stack)-1]
	for {
		sc.generated++
		prefix := "d" + strconv.Itoa(len(w.stack)) + "p" + strconv.Itoa(sc.generated)
		if _, taken := w.lookupNamespace(prefix); !taken {
			return prefix
		}
	}
}
