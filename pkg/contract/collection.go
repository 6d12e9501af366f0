package contract

import (
	"reflect"
	"strings"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
)

// CollectionShape 标识集合的形态，数值越小优先级越高。
type CollectionShape int

const (
	ShapeArray CollectionShape = iota
	ShapeGenericDictionary
	ShapeDictionary
	ShapeGenericList
	ShapeGenericCollection
	ShapeList
	ShapeGenericEnumerable
	ShapeCollection
	ShapeEnumerable
)

var shapeNames = map[CollectionShape]string{
	ShapeArray:             "Array",
	ShapeGenericDictionary: "GenericDictionary",
	ShapeDictionary:        "Dictionary",
	ShapeGenericList:       "GenericList",
	ShapeGenericCollection: "GenericCollection",
	ShapeList:              "List",
	ShapeGenericEnumerable: "GenericEnumerable",
	ShapeCollection:        "Collection",
	ShapeEnumerable:        "Enumerable",
}

func (s CollectionShape) String() string {
	return shapeNames[s]
}

// IsDictionary 报告形态是否为键值对集合。
func (s CollectionShape) IsDictionary() bool {
	return s == ShapeGenericDictionary || s == ShapeDictionary
}

// CollectionContract 把集合映射为重复的元素。
type CollectionContract struct {
	contractBase

	shape     CollectionShape
	item      Contract
	itemType  reflect.Type
	keyType   reflect.Type
	valueType reflect.Type
	itemName  string
	keyName   string
	valueName string
	length    int

	keyValue *ClassContract

	enumerate string
	add       string

	readOnly        bool
	readOnlyMessage string
}

func (c *CollectionContract) Shape() CollectionShape { return c.shape }

// Item 返回元素契约；字典的元素契约为合成的键值对类契约。
func (c *CollectionContract) Item() Contract { return c.item }

// ItemType 返回元素的 Go 类型；字典为合成的 {Key, Value} 结构体。
func (c *CollectionContract) ItemType() reflect.Type { return c.itemType }

func (c *CollectionContract) KeyType() reflect.Type   { return c.keyType }
func (c *CollectionContract) ValueType() reflect.Type { return c.valueType }

// ItemName 返回每个元素使用的元素名。
func (c *CollectionContract) ItemName() string  { return c.itemName }
func (c *CollectionContract) KeyName() string   { return c.keyName }
func (c *CollectionContract) ValueName() string { return c.valueName }

// Length 返回定长数组的长度，其他形态为 -1。
func (c *CollectionContract) Length() int { return c.length }

// KeyValue 返回字典合成的键值对契约，非字典为 nil。
func (c *CollectionContract) KeyValue() *ClassContract { return c.keyValue }

func (c *CollectionContract) IsDictionary() bool { return c.shape.IsDictionary() }

// EnumerateMethod 返回遍历方法名，内置切片、数组与 map 为空串。
func (c *CollectionContract) EnumerateMethod() string { return c.enumerate }

// AddMethod 返回添加方法名，内置切片、数组与 map 为空串。
func (c *CollectionContract) AddMethod() string { return c.add }

// IsReadOnly 报告集合能否被反序列化；只读集合仍然可以序列化。
func (c *CollectionContract) IsReadOnly() bool { return c.readOnly }

func (c *CollectionContract) ReadOnlyMessage() string { return c.readOnlyMessage }

// IsBuiltin 报告集合是否为切片、数组或 map。
func (c *CollectionContract) IsBuiltin() bool { return c.enumerate == "" }

// collectionCandidate 是类型满足的一种集合形态。
type collectionCandidate struct {
	shape     CollectionShape
	keyType   reflect.Type
	valueType reflect.Type
	itemType  reflect.Type
	enumerate string
	add       string
	readOnly  string
}

var anyType = reflect.TypeFor[any]()

// methodSignature 返回去掉接收者后的方法参数与返回值类型。
// 非接口类型在指针方法集上查找，Add 这类修改方法通常定义在指针上。
func methodSignature(t reflect.Type, name string) (in, out []reflect.Type, ok bool) {
	var (
		m      reflect.Method
		offset int
	)
	if t.Kind() == reflect.Interface {
		m, ok = t.MethodByName(name)
	} else {
		m, ok = reflect.PointerTo(t).MethodByName(name)
		offset = 1
	}
	if !ok {
		return nil, nil, false
	}
	mt := m.Type
	for i := offset; i < mt.NumIn(); i++ {
		in = append(in, mt.In(i))
	}
	for i := 0; i < mt.NumOut(); i++ {
		out = append(out, mt.Out(i))
	}
	return in, out, true
}

// seqElems 判断 t 是否为 iter.Seq 或 iter.Seq2 形式的函数类型，返回其元素类型。
func seqElems(t reflect.Type) []reflect.Type {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return nil
	}
	n := yield.NumIn()
	if n != 1 && n != 2 {
		return nil
	}
	elems := make([]reflect.Type, n)
	for i := range elems {
		elems[i] = yield.In(i)
	}
	return elems
}

func errorOnly(out []reflect.Type) bool {
	return len(out) == 0 || (len(out) == 1 && out[0] == reflect.TypeFor[error]())
}

// hasAdd 判断类型是否有参数恰为 params 的 Add 方法。
func hasAdd(t reflect.Type, params ...reflect.Type) bool {
	in, out, ok := methodSignature(t, "Add")
	if !ok || len(in) != len(params) || !errorOnly(out) {
		return false
	}
	for i := range params {
		if in[i] != params[i] {
			return false
		}
	}
	return true
}

func hasLen(t reflect.Type) bool {
	in, out, ok := methodSignature(t, "Len")
	return ok && len(in) == 0 && len(out) == 1 && out[0].Kind() == reflect.Int
}

// collectionCandidates 列出类型满足的全部集合形态。
func collectionCandidates(t reflect.Type) []collectionCandidate {
	switch t.Kind() {
	case reflect.Map:
		shape := ShapeGenericDictionary
		if t.Key() == anyType && t.Elem() == anyType {
			shape = ShapeDictionary
		}
		return []collectionCandidate{{shape: shape, keyType: t.Key(), valueType: t.Elem()}}
	case reflect.Slice:
		return []collectionCandidate{{shape: ShapeGenericList, itemType: t.Elem()}}
	case reflect.Array:
		return []collectionCandidate{{shape: ShapeArray, itemType: t.Elem()}}
	}

	var found []collectionCandidate
	for _, method := range []string{"All", "Values"} {
		in, out, ok := methodSignature(t, method)
		if !ok || len(in) != 0 || len(out) != 1 {
			continue
		}
		elems := seqElems(out[0])
		switch len(elems) {
		case 2:
			k, v := elems[0], elems[1]
			cand := collectionCandidate{shape: ShapeGenericDictionary, keyType: k, valueType: v, enumerate: method}
			if k == anyType && v == anyType {
				cand.shape = ShapeDictionary
			}
			if hasAdd(t, k, v) {
				cand.add = "Add"
			} else {
				cand.readOnly = "type has no Add(key, value) method"
			}
			found = append(found, cand)
		case 1:
			item := elems[0]
			cand := collectionCandidate{itemType: item, enumerate: method}
			add := hasAdd(t, item)
			if add {
				cand.add = "Add"
			}
			switch {
			case item != anyType && add:
				cand.shape = ShapeGenericCollection
			case item != anyType:
				cand.shape = ShapeGenericEnumerable
				cand.readOnly = "type has no Add method"
			case add && hasLen(t):
				cand.shape = ShapeList
			case add:
				cand.shape = ShapeCollection
			default:
				cand.shape = ShapeEnumerable
				cand.readOnly = "type has no Add method"
			}
			found = append(found, cand)
		}
	}
	return found
}

// selectCollectionShape 挑选优先级最高的形态；最高优先级下元素类型不一致时视为歧义。
func selectCollectionShape(t reflect.Type, found []collectionCandidate) (collectionCandidate, bool, error) {
	if len(found) == 0 {
		return collectionCandidate{}, false, nil
	}
	best := found[0]
	for _, cand := range found[1:] {
		if cand.shape < best.shape {
			best = cand
		}
	}
	var shapes []string
	for _, cand := range found {
		if cand.shape != best.shape {
			continue
		}
		if cand.itemType != best.itemType || cand.keyType != best.keyType || cand.valueType != best.valueType {
			shapes = append(shapes, describeCandidate(best), describeCandidate(cand))
		}
	}
	if len(shapes) > 0 {
		return collectionCandidate{}, false, merr.WrapErrAmbiguousCollectionShape(t, shapes...)
	}
	return best, true, nil
}

func describeCandidate(c collectionCandidate) string {
	var sb strings.Builder
	sb.WriteString(c.enumerate)
	sb.WriteString("() ")
	sb.WriteString(c.shape.String())
	sb.WriteString("[")
	if c.itemType != nil {
		sb.WriteString(c.itemType.String())
	} else {
		sb.WriteString(c.keyType.String())
		sb.WriteString(",")
		sb.WriteString(c.valueType.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// deriveCollection 推导集合契约。契约外壳先放入会话以支持递归元素类型。
func (s *session) deriveCollection(t reflect.Type, cand collectionCandidate) (*CollectionContract, error) {
	var info CollectionInfo
	if annotated, ok := annotation[CollectionDataContractor](t, collectionContractor); ok {
		info = annotated.CollectionDataContract()
	}
	c := &CollectionContract{
		contractBase: contractBase{
			kind:        KindCollection,
			typ:         t,
			isReference: info.IsReference,
		},
		shape:     cand.shape,
		keyType:   cand.keyType,
		valueType: cand.valueType,
		length:    -1,
		enumerate: cand.enumerate,
		add:       cand.add,
	}
	if cand.shape == ShapeArray {
		c.length = t.Len()
	}
	switch {
	case t.Kind() == reflect.Interface:
		c.readOnly = true
		c.readOnlyMessage = "cannot instantiate interface type " + t.String()
	case cand.readOnly != "":
		c.readOnly = true
		c.readOnlyMessage = cand.readOnly
	}
	s.put(t, c)

	if cand.shape.IsDictionary() {
		key, err := s.contractOf(cand.keyType)
		if err != nil {
			return nil, err
		}
		value, err := s.contractOf(cand.valueType)
		if err != nil {
			return nil, err
		}
		c.keyName = nonEmpty(info.KeyName, "Key")
		c.valueName = nonEmpty(info.ValueName, "Value")

		dictName := dictionaryStableName(key.StableName(), value.StableName())
		ns := nonEmpty(info.Namespace, dictName.Namespace)
		c.itemName = nonEmpty(info.ItemName, keyValueName(key.StableName(), value.StableName()))
		c.keyValue = newKeyValueContract(StableName{Name: c.itemName, Namespace: ns}, key, value,
			cand.keyType, cand.valueType, c.keyName, c.valueName)
		c.item = c.keyValue
		c.itemType = c.keyValue.typ
		if err := s.nameCollection(c, info, StableName{Name: "ArrayOf" + c.itemName, Namespace: ns}); err != nil {
			return nil, err
		}
		return c, nil
	}

	item, err := s.contractOf(cand.itemType)
	if err != nil {
		return nil, err
	}
	c.item = item
	c.itemType = cand.itemType
	c.itemName = nonEmpty(info.ItemName, item.StableName().Name)
	def := collectionStableName(item.StableName())
	def.Name = "ArrayOf" + c.itemName
	if info.Namespace != "" {
		def.Namespace = info.Namespace
	}
	if err := s.nameCollection(c, info, def); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *session) nameCollection(c *CollectionContract, info CollectionInfo, def StableName) error {
	if info.Name == "" {
		if err := validateStableName(c.typ, def); err != nil {
			return err
		}
		c.name = def
		return nil
	}
	name, err := s.resolveStableName(c.typ, info.Name, nonEmpty(info.Namespace, def.Namespace))
	if err != nil {
		return err
	}
	c.name = name
	return nil
}

func nonEmpty(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
