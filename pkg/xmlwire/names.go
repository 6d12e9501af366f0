package xmlwire

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// 线格式中保留的命名空间。
const (
	// SerializationNamespace 承载 Id、Ref、Size、FactoryType 等框架属性，约定前缀 z。
	SerializationNamespace = "http://schemas.microsoft.com/2003/10/Serialization/"
	// InstanceNamespace 承载 nil、type 属性，约定前缀 i。
	InstanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	// SchemaNamespace 为内置标量类型所在的命名空间。
	SchemaNamespace = "http://www.w3.org/2001/XMLSchema"
	// ArraysNamespace 为元素是内置类型的集合所在的命名空间。
	ArraysNamespace = "http://schemas.microsoft.com/2003/10/Serialization/Arrays"
	// XMLNSNamespace 为 xmlns 声明属性所在的命名空间。
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
	// XMLNamespace 为 xml 前缀绑定的命名空间。
	XMLNamespace = "http://www.w3.org/XML/1998/namespace"

	InstancePrefix      = "i"
	SerializationPrefix = "z"
)

// Attr 表示一个保留原始前缀的属性。
// Space 为解析后的命名空间，xmlns 声明的 Space 为 XMLNSNamespace。
type Attr struct {
	Prefix string
	Local  string
	Space  string
	Value  string
}

// IsNamespaceDecl 判断属性是否为 xmlns 或 xmlns:p 声明。
func (a Attr) IsNamespaceDecl() bool {
	return a.Prefix == "xmlns" || (a.Prefix == "" && a.Local == "xmlns")
}

// DeclaredPrefix 返回命名空间声明绑定的前缀，默认命名空间返回空串。
func (a Attr) DeclaredPrefix() string {
	if a.Prefix == "xmlns" {
		return a.Local
	}
	return ""
}

// QualifiedName 返回带前缀的属性名。
func (a Attr) QualifiedName() string {
	if a.Prefix == "" {
		return a.Local
	}
	return a.Prefix + ":" + a.Local
}

// IsNCName 判断 s 是否为合法的无冒号 XML 名称。
func IsNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == utf8.RuneError {
			return false
		}
		if i == 0 {
			if r != '_' && !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// SplitQName 将 "p:local" 拆分为前缀与本地名。
func SplitQName(qname string) (prefix, local string) {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[:i], qname[i+1:]
	}
	return "", qname
}
