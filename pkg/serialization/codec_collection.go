package serialization

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

type collectionCodec struct{}

func (collectionCodec) Write(w *xmlwire.Writer, v reflect.Value, ctx *WriteContext, c contract.Contract) error {
	cc := c.(*contract.CollectionContract)
	ns := cc.StableName().Namespace
	writeItem := func(item reflect.Value) error {
		if err := ctx.incrementItems(1); err != nil {
			return err
		}
		return ctx.writeMember(cc.ItemName(), ns, item, cc.Item(), false)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		if ctx.opts.PreserveReferences {
			w.WriteQualifiedAttribute(xmlwire.SerializationNamespace, "Size", strconv.Itoa(n))
		}
		for i := 0; i < n; i++ {
			if err := writeItem(v.Index(i)); err != nil {
				return err
			}
		}
		return w.Err()
	case reflect.Map:
		keys := v.MapKeys()
		slices.SortFunc(keys, compareKeys)
		for _, k := range keys {
			if err := writeItem(keyValue(cc, k, v.MapIndex(k))); err != nil {
				return err
			}
		}
		return w.Err()
	}

	seq := addressable(v).Addr().MethodByName(cc.EnumerateMethod()).Call(nil)[0]
	if cc.IsDictionary() {
		for k, val := range seq.Seq2() {
			if err := writeItem(keyValue(cc, k, val)); err != nil {
				return err
			}
		}
		return w.Err()
	}
	for item := range seq.Seq() {
		if err := writeItem(item); err != nil {
			return err
		}
	}
	return w.Err()
}

// keyValue 把字典的一对键值装入合成的 {Key, Value} 结构体。
func keyValue(cc *contract.CollectionContract, k, v reflect.Value) reflect.Value {
	kv := reflect.New(cc.ItemType()).Elem()
	setLoose(kv.Field(0), k)
	setLoose(kv.Field(1), v)
	return kv
}

// setLoose 赋值时容忍 Seq2 产出的接口值：nil 接口写入零值。
func setLoose(dst, src reflect.Value) {
	if !src.IsValid() {
		dst.SetZero()
		return
	}
	if src.Kind() == reflect.Interface && dst.Kind() != reflect.Interface {
		if src.IsNil() {
			dst.SetZero()
			return
		}
		src = src.Elem()
	}
	dst.Set(src)
}

// compareKeys 为 map 键提供稳定的输出顺序。
func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface && b.Kind() == reflect.Interface && !a.IsNil() && !b.IsNil() {
		a, b = a.Elem(), b.Elem()
	}
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.String:
			return strings.Compare(a.String(), b.String())
		case reflect.Bool:
			return cmp.Compare(boolOrder(a.Bool()), boolOrder(b.Bool()))
		}
	}
	return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func boolOrder(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Read 读取重复的元素。带 z:Size 时按提示预分配，超出提示即报错；
// 否则切片按倍增扩容，读完后收紧容量。
func (collectionCodec) Read(r *xmlwire.Reader, ctx *ReadContext, c contract.Contract) (reflect.Value, error) {
	cc := c.(*contract.CollectionContract)
	t := cc.Type()

	hint := -1
	if raw, ok := r.GetAttribute("Size", xmlwire.SerializationNamespace); ok {
		size, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || size < 0 {
			return reflect.Value{}, merr.WrapErrInvalidValue(t, raw, err)
		}
		if remaining := ctx.opts.MaxItemsInGraph - ctx.items; size > remaining {
			return reflect.Value{}, merr.WrapErrArrayTooLarge(size, remaining)
		}
		hint = size
	}

	switch t.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(t, 0, max(hint, 0))
		err := ctx.readItems(cc, func(item reflect.Value) error {
			if hint >= 0 && s.Len() >= hint {
				return merr.WrapErrArrayExceededSize(hint)
			}
			s = reflect.Append(s, item)
			return nil
		})
		if err != nil {
			return reflect.Value{}, err
		}
		if s.Cap() > s.Len() {
			trimmed := reflect.MakeSlice(t, s.Len(), s.Len())
			reflect.Copy(trimmed, s)
			s = trimmed
		}
		return s, nil

	case reflect.Array:
		arr := reflect.New(t).Elem()
		n := 0
		err := ctx.readItems(cc, func(item reflect.Value) error {
			if n >= cc.Length() {
				return merr.WrapErrArrayExceededSize(cc.Length())
			}
			arr.Index(n).Set(item)
			n++
			return nil
		})
		if err != nil {
			return reflect.Value{}, err
		}
		return arr, nil

	case reflect.Map:
		m := reflect.MakeMapWithSize(t, max(hint, 0))
		if err := ctx.registerPending(m); err != nil {
			return reflect.Value{}, err
		}
		err := ctx.readItems(cc, func(item reflect.Value) error {
			m.SetMapIndex(item.Field(0), item.Field(1))
			return nil
		})
		if err != nil {
			return reflect.Value{}, err
		}
		return m, nil
	}

	p := reflect.New(t)
	if err := ctx.registerPending(p); err != nil {
		return reflect.Value{}, err
	}
	add := p.MethodByName(cc.AddMethod())
	err := ctx.readItems(cc, func(item reflect.Value) error {
		if cc.IsDictionary() {
			return callAdd(add, t, item.Field(0), item.Field(1))
		}
		return callAdd(add, t, item)
	})
	if err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// readItems 逐个读取集合元素，元素名必须与契约一致。
func (ctx *ReadContext) readItems(cc *contract.CollectionContract, add func(item reflect.Value) error) error {
	r := ctx.r
	ns := cc.StableName().Namespace
	if err := r.ReadStartElement(); err != nil {
		return err
	}
	for {
		node, err := r.MoveToContent()
		if err != nil {
			return err
		}
		if node == xmlwire.EndElement {
			break
		}
		if node != xmlwire.Element || r.LocalName() != cc.ItemName() || r.NamespaceURI() != ns {
			return merr.WrapErrUnexpectedNode("{"+ns+"}"+cc.ItemName(), describeNode(r))
		}
		if err := ctx.incrementItems(1); err != nil {
			return err
		}
		item, err := ctx.readValue(cc.ItemType(), cc.Item())
		if err != nil {
			return err
		}
		if err := add(item); err != nil {
			return err
		}
	}
	return r.ReadEndElement()
}

func describeNode(r *xmlwire.Reader) string {
	switch r.NodeType() {
	case xmlwire.Element, xmlwire.EndElement:
		return r.NodeType().String() + " {" + r.NamespaceURI() + "}" + r.LocalName()
	default:
		return r.NodeType().String()
	}
}
