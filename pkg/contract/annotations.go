package contract

import (
	"iter"
	"reflect"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// ContractInfo 是类型通过 DataContractor 声明的契约信息。
type ContractInfo struct {
	// Name 覆盖默认稳定名，泛型类型可以使用 {0}、{1} 模板引用类型参数名。
	Name string
	// Namespace 覆盖默认命名空间，需为绝对 URI。
	Namespace string
	// IsReference 为 true 时该类型的对象总是以 z:Id/z:Ref 保留引用。
	IsReference bool
	// KnownTypes 列出可以出现在该类型接口成员中的具体类型。
	KnownTypes []reflect.Type
}

// DataContractor 表示类型显式声明为数据契约。
// 实现该接口后只有带 dc 标签的字段才会成为成员。
type DataContractor interface {
	DataContract() ContractInfo
}

// CollectionInfo 是集合类型声明的名称信息，空字段使用默认值。
type CollectionInfo struct {
	Name        string
	Namespace   string
	ItemName    string
	KeyName     string
	ValueName   string
	IsReference bool
}

// CollectionDataContractor 为集合类型定制元素名称。
type CollectionDataContractor interface {
	CollectionDataContract() CollectionInfo
}

// EnumMember 是枚举的一个符号值。
type EnumMember struct {
	Name  string
	Value int64
}

// EnumInfo 描述一个整数类型的枚举契约。
type EnumInfo struct {
	Name      string
	Namespace string
	// Flags 为 true 时值按位组合，线格式上以空格分隔多个成员名。
	Flags   bool
	Members []EnumMember
}

// EnumDescriber 由整数类型实现，使其按符号名序列化。
type EnumDescriber interface {
	EnumDescription() EnumInfo
}

// XMLSerializable 由自行控制 XML 片段的类型在指针上实现。
//
// WriteXML 调用时开始标签仍处于打开状态，可以继续写属性；
// ReadXML 调用时读取器位于该类型的开始标签上，返回前必须读完对应的结束标签。
type XMLSerializable interface {
	WriteXML(w *xmlwire.Writer) error
	ReadXML(r *xmlwire.Reader) error
}

// Serializable 以键值对的形式导出对象状态。
type Serializable interface {
	GetObjectData(info *SerializationInfo) error
}

// Deserializable 从键值对恢复对象状态，必须在指针上实现。
type Deserializable interface {
	SetObjectData(info *SerializationInfo) error
}

// ObjectReference 允许反序列化完成后用另一个对象替换当前对象。
type ObjectReference interface {
	GetRealObject() (any, error)
}

// 序列化回调，均在指针上调用。
type (
	SerializingHook interface {
		OnSerializing() error
	}
	SerializedHook interface {
		OnSerialized() error
	}
	DeserializingHook interface {
		OnDeserializing() error
	}
	DeserializedHook interface {
		OnDeserialized() error
	}
)

var (
	dataContractorType    = reflect.TypeFor[DataContractor]()
	collectionContractor  = reflect.TypeFor[CollectionDataContractor]()
	enumDescriberType     = reflect.TypeFor[EnumDescriber]()
	xmlSerializableType   = reflect.TypeFor[XMLSerializable]()
	serializableType      = reflect.TypeFor[Serializable]()
	deserializableType    = reflect.TypeFor[Deserializable]()
	objectReferenceType   = reflect.TypeFor[ObjectReference]()
	serializingHookType   = reflect.TypeFor[SerializingHook]()
	serializedHookType    = reflect.TypeFor[SerializedHook]()
	deserializingHookType = reflect.TypeFor[DeserializingHook]()
	deserializedHookType  = reflect.TypeFor[DeserializedHook]()
	extensionDataPtrType  = reflect.TypeFor[*ExtensionData]()
)

// annotation 在 T 或 *T 上查找接口 I 的实现。
func annotation[I any](t reflect.Type, iface reflect.Type) (I, bool) {
	var zero I
	if t.Implements(iface) {
		if v, ok := reflect.Zero(t).Interface().(I); ok {
			return v, true
		}
	}
	if reflect.PointerTo(t).Implements(iface) {
		if v, ok := reflect.New(t).Interface().(I); ok {
			return v, true
		}
	}
	return zero, false
}

func implementsOnPointer(t reflect.Type, iface reflect.Type) bool {
	return reflect.PointerTo(t).Implements(iface)
}

// SerializationInfo 保存 Serializable 类型导出的有序键值对。
type SerializationInfo struct {
	typ     reflect.Type
	factory reflect.Type
	names   []string
	values  map[string]any
}

// NewSerializationInfo 为类型 t 创建空的 SerializationInfo。
func NewSerializationInfo(t reflect.Type) *SerializationInfo {
	return &SerializationInfo{
		typ:    t,
		values: make(map[string]any),
	}
}

// ObjectType 返回正在序列化的对象类型。
func (info *SerializationInfo) ObjectType() reflect.Type {
	return info.typ
}

// SetType 指定反序列化时应构造的工厂类型，线格式上写作 z:FactoryType。
func (info *SerializationInfo) SetType(t reflect.Type) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	info.factory = t
}

// FactoryType 返回通过 SetType 指定的工厂类型，未指定时为 nil。
func (info *SerializationInfo) FactoryType() reflect.Type {
	return info.factory
}

// AddValue 追加一个键值对，同名键重复添加返回错误。
func (info *SerializationInfo) AddValue(name string, value any) error {
	if name == "" {
		return merr.WrapErrParameterInvalidMsg("serialization info entry name is empty")
	}
	if _, ok := info.values[name]; ok {
		return merr.WrapErrDuplicateMember(info.typ, name)
	}
	info.names = append(info.names, name)
	info.values[name] = value
	return nil
}

// GetValue 返回键对应的原始值。
func (info *SerializationInfo) GetValue(name string) (any, bool) {
	v, ok := info.values[name]
	return v, ok
}

// Len 返回键值对个数。
func (info *SerializationInfo) Len() int {
	return len(info.names)
}

// All 按添加顺序遍历键值对。
func (info *SerializationInfo) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range info.names {
			if !yield(name, info.values[name]) {
				return
			}
		}
	}
}

// InfoValue 取出键对应的值并转换为 T。
// 线格式上整数统一解码为 int64 等规范类型，这里允许可转换的数值类型之间互转。
func InfoValue[T any](info *SerializationInfo, name string) (T, error) {
	var zero T
	raw, ok := info.GetValue(name)
	if !ok {
		return zero, merr.WrapErrRequiredMemberMissing(info.typ, name, "serialization info")
	}
	if raw == nil {
		return zero, nil
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	target := reflect.TypeFor[T]()
	rv := reflect.ValueOf(raw)
	if rv.Type().ConvertibleTo(target) && isNumericKind(rv.Kind()) && isNumericKind(target.Kind()) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, merr.WrapErrInvalidValue(target, rv.Type().String(), nil)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
