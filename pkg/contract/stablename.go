package contract

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// DefaultNamespacePrefix 加上包路径即为类型的默认命名空间。
const DefaultNamespacePrefix = "http://schemas.datacontract.org/2004/07/"

// DefaultNamespace 返回类型 t 的默认命名空间。
func DefaultNamespace(t reflect.Type) string {
	return DefaultNamespacePrefix + t.PkgPath()
}

// builtinArgNames 记录泛型参数中内置类型的书写形式到稳定名的映射。
// 由 primitive.go 的 init 填充。
var builtinArgNames = map[string]StableName{}

func qualifiedTypeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// resolveStableName 计算类型的稳定名：显式覆盖优先，否则取类型名；
// 泛型实例化时替换 {0}、{1} 模板或拼接 {Base}Of{Arg0}{Arg1}，参数名取自参数类型的契约。
func (s *session) resolveStableName(t reflect.Type, name, namespace string) (StableName, error) {
	if namespace == "" {
		namespace = DefaultNamespace(t)
	}
	base, args := splitGenericName(t.Name())
	if len(args) > 0 {
		argNames, err := s.typeArgNames(t, args)
		if err != nil {
			return StableName{}, err
		}
		name = genericName(base, name, argNames)
	} else if name == "" {
		name = base
	}
	sn := StableName{Name: name, Namespace: namespace}
	if err := validateStableName(t, sn); err != nil {
		return StableName{}, err
	}
	return sn, nil
}

// typeArgNames 返回泛型实例 t 各类型参数的稳定名。
// reflect 不暴露类型参数，这里在 t 的字段与方法签名中按书写形式找回参数类型，
// 再取其契约的稳定名；找不到（参数未被使用）或参数正处于命名中时按书写形式推断。
func (s *session) typeArgNames(t reflect.Type, args []string) ([]StableName, error) {
	if !s.naming[t] {
		s.naming[t] = true
		defer delete(s.naming, t)
	}

	reachable := reachableTypes(t)
	names := make([]StableName, 0, len(args))
	for _, arg := range args {
		at, ok := reachable[arg]
		if !ok {
			names = append(names, argStableName(arg))
			continue
		}
		if base, err := normalizeType(at); err == nil && s.naming[base] {
			names = append(names, argStableName(arg))
			continue
		}
		c, err := s.contractOf(at)
		if err != nil {
			return nil, err
		}
		names = append(names, c.StableName())
	}
	return names, nil
}

// reachableTypes 收集 t 的字段、元素与方法签名中出现的类型，按 typeSpelling 索引。
// 具名类型只登记自身，不再展开。
func reachableTypes(t reflect.Type) map[string]reflect.Type {
	found := make(map[string]reflect.Type)
	var visit func(rt reflect.Type, expand bool)
	visit = func(rt reflect.Type, expand bool) {
		key := typeSpelling(rt)
		if _, ok := found[key]; ok {
			return
		}
		found[key] = rt
		if rt.Name() != "" && !expand {
			return
		}
		switch rt.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			visit(rt.Elem(), false)
		case reflect.Map:
			visit(rt.Key(), false)
			visit(rt.Elem(), false)
		case reflect.Struct:
			for i := 0; i < rt.NumField(); i++ {
				visit(rt.Field(i).Type, false)
			}
		}
	}
	visit(t, true)
	for _, mt := range []reflect.Type{t, reflect.PointerTo(t)} {
		for i := 0; i < mt.NumMethod(); i++ {
			ft := mt.Method(i).Type
			for j := 1; j < ft.NumIn(); j++ {
				visit(ft.In(j), false)
			}
			for j := 0; j < ft.NumOut(); j++ {
				visit(ft.Out(j), false)
			}
		}
	}
	return found
}

// typeSpelling 返回类型在泛型实例名中的书写形式，如 []example.com/pkg.Item。
func typeSpelling(t reflect.Type) string {
	if t.Name() != "" {
		return qualifiedTypeName(t)
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeSpelling(t.Elem())
	case reflect.Slice:
		return "[]" + typeSpelling(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + typeSpelling(t.Elem())
	case reflect.Map:
		return "map[" + typeSpelling(t.Key()) + "]" + typeSpelling(t.Elem())
	}
	return t.String()
}

func validateStableName(t reflect.Type, sn StableName) error {
	if !xmlwire.IsNCName(sn.Name) {
		return merr.WrapErrInvalidStableName(t, sn.Name, sn.Namespace, "name is not a valid NCName")
	}
	if sn.Namespace == "" {
		return nil
	}
	u, err := url.Parse(sn.Namespace)
	if err != nil || !u.IsAbs() {
		return merr.WrapErrInvalidStableName(t, sn.Name, sn.Namespace, "namespace is not an absolute URI")
	}
	return nil
}

func genericName(base, template string, args []StableName) string {
	var name string
	if template == "" {
		var sb strings.Builder
		sb.WriteString(base)
		sb.WriteString("Of")
		for _, arg := range args {
			sb.WriteString(arg.Name)
		}
		name = sb.String()
	} else {
		name = template
		for i, arg := range args {
			name = strings.ReplaceAll(name, "{"+strconv.Itoa(i)+"}", arg.Name)
		}
	}
	return name + namespaceDigest(args)
}

// namespaceDigest 在任一类型参数位于非内置命名空间时返回基于命名空间的摘要后缀。
func namespaceDigest(args []StableName) string {
	needed := false
	namespaces := make([]string, 0, len(args))
	for _, arg := range args {
		namespaces = append(namespaces, arg.Namespace)
		if !IsReservedNamespace(arg.Namespace) {
			needed = true
		}
	}
	if !needed {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(namespaces, " ")), 36)
}

// splitGenericName 将 "Pair[int,string]" 拆分为 "Pair" 与参数列表。
func splitGenericName(name string) (string, []string) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}
	return name[:open], splitTopLevel(name[open+1 : len(name)-1])
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// argStableName 依据类型参数的书写形式推导其稳定名，仅在找不到参数类型时使用。
func argStableName(arg string) StableName {
	arg = strings.TrimLeft(arg, "*")
	if sn, ok := builtinArgNames[arg]; ok {
		return sn
	}
	switch {
	case strings.HasPrefix(arg, "[]"):
		return collectionStableName(argStableName(arg[2:]))
	case strings.HasPrefix(arg, "["):
		if end := strings.IndexByte(arg, ']'); end > 0 {
			return collectionStableName(argStableName(arg[end+1:]))
		}
	case strings.HasPrefix(arg, "map["):
		depth := 0
		for i := 3; i < len(arg); i++ {
			switch arg[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					key := argStableName(arg[4:i])
					value := argStableName(arg[i+1:])
					return dictionaryStableName(key, value)
				}
			}
		}
	}

	// 形如 path/to/pkg.Name 或 path/to/pkg.Name[args]。
	head := arg
	if i := strings.IndexByte(head, '['); i >= 0 {
		head = head[:i]
	}
	dot := strings.LastIndexByte(head, '.')
	if dot < 0 {
		return StableName{Name: arg, Namespace: xmlwire.SchemaNamespace}
	}
	pkgPath, typeName := arg[:dot], arg[dot+1:]
	base, args := splitGenericName(typeName)
	if len(args) > 0 {
		argNames := make([]StableName, 0, len(args))
		for _, a := range args {
			argNames = append(argNames, argStableName(a))
		}
		base = genericName(base, "", argNames)
	}
	return StableName{Name: base, Namespace: DefaultNamespacePrefix + pkgPath}
}

// collectionStableName 返回元素稳定名为 item 的集合默认名称。
func collectionStableName(item StableName) StableName {
	return StableName{Name: "ArrayOf" + item.Name, Namespace: collectionNamespace(item.Namespace)}
}

func dictionaryStableName(key, value StableName) StableName {
	ns := collectionNamespace(key.Namespace)
	if ns == xmlwire.ArraysNamespace {
		ns = collectionNamespace(value.Namespace)
	}
	return StableName{Name: "ArrayOf" + keyValueName(key, value), Namespace: ns}
}

func keyValueName(key, value StableName) string {
	return "KeyValueOf" + key.Name + value.Name
}

func collectionNamespace(itemNS string) string {
	if IsReservedNamespace(itemNS) {
		return xmlwire.ArraysNamespace
	}
	return itemNS
}
