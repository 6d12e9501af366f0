package contract

import (
	"cmp"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// MemberTagKey 是声明数据成员所用的结构体标签名。
//
//	Name string `dc:"FullName,order=2,required,omitempty,getonly,ns=urn:people"`
//	Secret string `dc:"-"`
const MemberTagKey = "dc"

// Member 是类契约中的一个数据成员。
type Member struct {
	Name      string
	Namespace string
	// Index 为相对于所属契约类型的字段索引路径，可直接用于 reflect.Value.FieldByIndex。
	Index []int
	// Type 为字段声明类型，可能带指针。
	Type reflect.Type
	// Required 为 true 时读取端缺少该成员报错，写入端不允许省略。
	Required bool
	// EmitDefault 为 false 时零值不写出。
	EmitDefault bool
	// GetOnly 成员在读取时不替换字段，而是把元素追加到已有集合中。
	GetOnly bool
	// Conflict 表示继承链上存在同名不同类型的成员，写出时总是带 i:type。
	Conflict bool
	Order    int

	contract Contract
}

// Contract 返回成员声明类型对应的契约。
func (m *Member) Contract() Contract {
	return m.contract
}

// ClassContract 把结构体映射为按顺序排列的成员元素。
type ClassContract struct {
	contractBase

	base       *ClassContract
	baseIndex  int
	members    []Member
	allMembers []Member
	extIndex   []int

	onSerializing      bool
	onSerialized       bool
	onDeserializing    bool
	onDeserialized     bool
	hasObjectReference bool
	keyValue           bool

	declaredKnown []Contract
	finalized     bool
}

// Base 返回嵌入的基类契约，没有时为 nil。
func (c *ClassContract) Base() *ClassContract {
	return c.base
}

// Members 返回本层声明的成员，已按 (Order, Name) 排序。
func (c *ClassContract) Members() []Member {
	return c.members
}

// AllMembers 返回从最远基类开始展开的全部成员，Index 相对于本类型。
func (c *ClassContract) AllMembers() []Member {
	return c.allMembers
}

// ExtensionDataIndex 返回 *ExtensionData 字段的索引路径，不支持扩展数据时为 nil。
func (c *ClassContract) ExtensionDataIndex() []int {
	return c.extIndex
}

// HasExtensionData 报告类型是否能保存未知成员。
func (c *ClassContract) HasExtensionData() bool {
	return c.extIndex != nil
}

func (c *ClassContract) HasOnSerializing() bool   { return c.onSerializing }
func (c *ClassContract) HasOnSerialized() bool    { return c.onSerialized }
func (c *ClassContract) HasOnDeserializing() bool { return c.onDeserializing }
func (c *ClassContract) HasOnDeserialized() bool  { return c.onDeserialized }

// HasObjectReference 报告反序列化完成后是否需要调用 GetRealObject 替换对象。
func (c *ClassContract) HasObjectReference() bool {
	return c.hasObjectReference
}

// IsKeyValue 报告契约是否为字典合成的键值对类型。
func (c *ClassContract) IsKeyValue() bool {
	return c.keyValue
}

type memberTag struct {
	tagged    bool
	skip      bool
	name      string
	namespace string
	order     int
	required  bool
	omitEmpty bool
	getOnly   bool
}

func parseMemberTag(owner reflect.Type, f reflect.StructField) (memberTag, error) {
	tag := memberTag{order: -1}
	raw, ok := f.Tag.Lookup(MemberTagKey)
	if !ok {
		return tag, nil
	}
	tag.tagged = true
	if raw == "-" {
		tag.skip = true
		return tag, nil
	}
	parts := strings.Split(raw, ",")
	tag.name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, val, hasVal := strings.Cut(opt, "=")
		switch {
		case opt == "required":
			tag.required = true
		case opt == "omitempty":
			tag.omitEmpty = true
		case opt == "getonly":
			tag.getOnly = true
		case key == "order" && hasVal:
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return tag, merr.WrapErrInvalidDataMember(owner, f.Name, "order must be a non-negative integer")
			}
			tag.order = n
		case key == "ns" && hasVal:
			tag.namespace = val
		case opt == "":
		default:
			return tag, merr.WrapErrInvalidDataMember(owner, f.Name, "unknown tag option "+opt)
		}
	}
	return tag, nil
}

// deriveClass 推导结构体的类契约。
// 契约外壳在推导成员前放入会话，自引用的成员类型会拿到同一个外壳。
func (s *session) deriveClass(t reflect.Type) (*ClassContract, error) {
	var info ContractInfo
	explicit, optIn := annotation[DataContractor](t, dataContractorType)
	if optIn {
		info = explicit.DataContract()
	}
	name, err := s.resolveStableName(t, info.Name, info.Namespace)
	if err != nil {
		return nil, err
	}
	// 解析泛型参数时可能已经推导完同一类型。
	if c, ok := s.built[t].(*ClassContract); ok {
		return c, nil
	}
	c := &ClassContract{
		contractBase: contractBase{
			kind:        KindClass,
			name:        name,
			typ:         t,
			isReference: info.IsReference,
		},
		baseIndex:          -1,
		onSerializing:      implementsOnPointer(t, serializingHookType),
		onSerialized:       implementsOnPointer(t, serializedHookType),
		onDeserializing:    implementsOnPointer(t, deserializingHookType),
		onDeserialized:     implementsOnPointer(t, deserializedHookType),
		hasObjectReference: implementsOnPointer(t, objectReferenceType),
	}
	s.put(t, c)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, err := parseMemberTag(t, f)
		if err != nil {
			return nil, err
		}
		if tag.skip {
			continue
		}
		if f.Type == extensionDataPtrType {
			if !f.IsExported() {
				return nil, merr.WrapErrInvalidDataMember(t, f.Name, "extension data field must be exported")
			}
			c.extIndex = []int{i}
			continue
		}
		if f.Anonymous && !tag.tagged {
			handled, err := s.deriveBase(c, f, i)
			if err != nil {
				return nil, err
			}
			if handled {
				continue
			}
		}
		if !f.IsExported() {
			if tag.tagged {
				return nil, merr.WrapErrInvalidDataMember(t, f.Name, "tagged field is not exported")
			}
			continue
		}
		if optIn && !tag.tagged {
			continue
		}
		m, err := s.deriveMember(c, f, i, tag)
		if err != nil {
			return nil, err
		}
		c.members = append(c.members, m)
	}

	slices.SortStableFunc(c.members, func(a, b Member) int {
		if n := cmp.Compare(a.Order, b.Order); n != 0 {
			return n
		}
		return strings.Compare(a.Name, b.Name)
	})
	for i, cur := range c.members {
		if slices.ContainsFunc(c.members[:i], func(m Member) bool {
			return m.Name == cur.Name && m.Namespace == cur.Namespace
		}) {
			return nil, merr.WrapErrDuplicateMember(t, cur.Name)
		}
	}

	for _, kt := range info.KnownTypes {
		known, err := s.contractOf(kt)
		if err != nil {
			return nil, err
		}
		c.declaredKnown = append(c.declaredKnown, known)
	}
	s.classes = append(s.classes, c)
	return c, nil
}

// deriveBase 处理匿名字段：结构体值类型的匿名字段作为基类，至多一个。
func (s *session) deriveBase(c *ClassContract, f reflect.StructField, index int) (bool, error) {
	ft := f.Type
	if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
		return false, merr.WrapErrInvalidDataMember(c.typ, f.Name, "embedded pointer cannot be a base type")
	}
	if ft.Kind() != reflect.Struct {
		return false, nil
	}
	if !f.IsExported() {
		return true, nil
	}
	baseContract, err := s.contractOf(ft)
	if err != nil {
		return false, err
	}
	base, ok := baseContract.(*ClassContract)
	if !ok {
		// 例如嵌入 time.Time，按普通成员处理。
		return false, nil
	}
	if c.base != nil {
		return false, merr.WrapErrMultipleBaseTypes(c.typ, c.base.typ.String(), ft.String())
	}
	c.base = base
	c.baseIndex = index
	return true, nil
}

func (s *session) deriveMember(c *ClassContract, f reflect.StructField, index int, tag memberTag) (Member, error) {
	m := Member{
		Name:        f.Name,
		Namespace:   c.name.Namespace,
		Index:       []int{index},
		Type:        f.Type,
		Required:    tag.required,
		EmitDefault: !tag.omitEmpty,
		GetOnly:     tag.getOnly,
		Order:       tag.order,
	}
	if tag.name != "" {
		m.Name = tag.name
	}
	if tag.namespace != "" {
		m.Namespace = tag.namespace
	}
	if !xmlwire.IsNCName(m.Name) {
		return m, merr.WrapErrInvalidDataMember(c.typ, m.Name, "member name is not a valid NCName")
	}
	mc, err := s.contractOf(f.Type)
	if err != nil {
		return m, err
	}
	if m.GetOnly && mc.Kind() != KindCollection {
		return m, merr.WrapErrInvalidDataMember(c.typ, m.Name, "getonly requires a collection type")
	}
	m.contract = mc
	return m, nil
}

// finalize 在会话结束时展开继承链：合并成员、扩展数据字段与已知类型。
// 基类先于派生类完成，保证展开时基类成员已经齐全。
func (c *ClassContract) finalize() {
	if c.finalized {
		return
	}
	c.finalized = true

	known := newKnownTypeTable()
	var inherited []Member
	if c.base != nil {
		c.base.finalize()
		for _, bm := range c.base.allMembers {
			bm.Index = append([]int{c.baseIndex}, bm.Index...)
			bm.Conflict = false
			inherited = append(inherited, bm)
		}
		if c.extIndex == nil && c.base.extIndex != nil {
			c.extIndex = append([]int{c.baseIndex}, c.base.extIndex...)
		}
		for _, kc := range c.base.knownTypes.Contracts() {
			known.add(kc)
		}
	}
	for _, kc := range c.declaredKnown {
		known.add(kc)
	}
	if known.Len() > 0 {
		c.knownTypes = known
	}

	all := make([]Member, 0, len(inherited)+len(c.members))
	all = append(all, inherited...)
	all = append(all, c.members...)
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			if all[i].Name == all[j].Name && all[i].Namespace == all[j].Namespace && all[i].Type != all[j].Type {
				all[i].Conflict = true
			}
		}
	}
	c.allMembers = all
}

// newKeyValueContract 合成字典元素使用的 {Key, Value} 类契约。
func newKeyValueContract(name StableName, key, value Contract, keyType, valueType reflect.Type, keyName, valueName string) *ClassContract {
	t := reflect.StructOf([]reflect.StructField{
		{Name: "Key", Type: keyType},
		{Name: "Value", Type: valueType},
	})
	members := []Member{
		{Name: keyName, Namespace: name.Namespace, Index: []int{0}, Type: keyType, Required: true, EmitDefault: true, Order: -1, contract: key},
		{Name: valueName, Namespace: name.Namespace, Index: []int{1}, Type: valueType, Required: true, EmitDefault: true, Order: -1, contract: value},
	}
	c := &ClassContract{
		contractBase: contractBase{
			kind: KindClass,
			name: name,
			typ:  t,
		},
		baseIndex: -1,
		members:   members,
		keyValue:  true,
	}
	c.finalize()
	return c
}
