package contract

import (
	"encoding/base64"
	"encoding/xml"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// PrimitiveContract 把内置标量直接映射为元素文本。
// 同一线格式名称可以对应多个 Go 类型（例如 int 与 int64 都是 long），它们互为别名。
type PrimitiveContract struct {
	contractBase
	encode  func(v reflect.Value) (string, error)
	decode  func(text string, v reflect.Value) error
	anyType bool
	qname   bool
}

// Encode 将标量值编码为元素文本。
func (c *PrimitiveContract) Encode(v reflect.Value) (string, error) {
	if c.encode == nil {
		return "", merr.WrapErrOperationNotSupported(c.name.Name, "encode")
	}
	return c.encode(v)
}

// Decode 将元素文本解码为 Type() 类型的新值。
func (c *PrimitiveContract) Decode(text string) (reflect.Value, error) {
	if c.decode == nil {
		return reflect.Value{}, merr.WrapErrOperationNotSupported(c.name.Name, "decode")
	}
	v := reflect.New(c.typ).Elem()
	if err := c.decode(text, v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// IsAnyType 报告契约是否对应接口类型，此类成员总是需要 i:type 指明实际类型。
func (c *PrimitiveContract) IsAnyType() bool {
	return c.anyType
}

// IsQName 报告值是否为限定名，编码时需要在当前元素上声明前缀。
func (c *PrimitiveContract) IsQName() bool {
	return c.qname
}

func (c *PrimitiveContract) IsValueType() bool {
	return !c.anyType
}

// withType 返回绑定到另一个 Go 类型的别名契约。
func (c *PrimitiveContract) withType(t reflect.Type) *PrimitiveContract {
	clone := *c
	clone.typ = t
	return &clone
}

type primitiveSpec struct {
	typ    reflect.Type
	name   string
	ns     string
	encode func(v reflect.Value) (string, error)
	decode func(text string, v reflect.Value) error
}

var (
	primitivesByType = make(map[reflect.Type]*PrimitiveContract)
	primitivesByName = make(map[StableName]*PrimitiveContract)
	primitivesByKind = make(map[reflect.Kind]*PrimitiveContract)

	anyTypeContract *PrimitiveContract
	bytesContract   *PrimitiveContract
)

func init() {
	specs := []primitiveSpec{
		{reflect.TypeFor[bool](), "boolean", xmlwire.SchemaNamespace, encodeBool, decodeBool},
		{reflect.TypeFor[int64](), "long", xmlwire.SchemaNamespace, encodeSigned, signedDecoder[int64]()},
		{reflect.TypeFor[int](), "long", xmlwire.SchemaNamespace, encodeSigned, signedDecoder[int]()},
		{reflect.TypeFor[int32](), "int", xmlwire.SchemaNamespace, encodeSigned, signedDecoder[int32]()},
		{reflect.TypeFor[int16](), "short", xmlwire.SchemaNamespace, encodeSigned, signedDecoder[int16]()},
		{reflect.TypeFor[int8](), "byte", xmlwire.SchemaNamespace, encodeSigned, signedDecoder[int8]()},
		{reflect.TypeFor[uint64](), "unsignedLong", xmlwire.SchemaNamespace, encodeUnsigned, unsignedDecoder[uint64]()},
		{reflect.TypeFor[uint](), "unsignedLong", xmlwire.SchemaNamespace, encodeUnsigned, unsignedDecoder[uint]()},
		{reflect.TypeFor[uint32](), "unsignedInt", xmlwire.SchemaNamespace, encodeUnsigned, unsignedDecoder[uint32]()},
		{reflect.TypeFor[uint16](), "unsignedShort", xmlwire.SchemaNamespace, encodeUnsigned, unsignedDecoder[uint16]()},
		{reflect.TypeFor[uint8](), "unsignedByte", xmlwire.SchemaNamespace, encodeUnsigned, unsignedDecoder[uint8]()},
		{reflect.TypeFor[float64](), "double", xmlwire.SchemaNamespace, floatEncoder[float64](), floatDecoder[float64]()},
		{reflect.TypeFor[float32](), "float", xmlwire.SchemaNamespace, floatEncoder[float32](), floatDecoder[float32]()},
		{reflect.TypeFor[string](), "string", xmlwire.SchemaNamespace, encodeString, decodeString},
		{reflect.TypeFor[[]byte](), "base64Binary", xmlwire.SchemaNamespace, encodeBytes, decodeBytes},
		{reflect.TypeFor[time.Time](), "dateTime", xmlwire.SchemaNamespace, encodeTime, decodeTime},
		{reflect.TypeFor[time.Duration](), "duration", xmlwire.SerializationNamespace, encodeDuration, decodeDuration},
		{reflect.TypeFor[uuid.UUID](), "guid", xmlwire.SerializationNamespace, encodeUUID, decodeUUID},
		{reflect.TypeFor[url.URL](), "anyURI", xmlwire.SchemaNamespace, encodeURL, decodeURL},
		{reflect.TypeFor[xml.Name](), "QName", xmlwire.SchemaNamespace, nil, nil},
		{reflect.TypeFor[any](), "anyType", xmlwire.SchemaNamespace, nil, nil},
	}
	for _, spec := range specs {
		c := &PrimitiveContract{
			contractBase: contractBase{
				kind:     KindPrimitive,
				name:     StableName{Name: spec.name, Namespace: spec.ns},
				typ:      spec.typ,
				topLevel: StableName{Name: spec.name, Namespace: xmlwire.SerializationNamespace},
			},
			encode: spec.encode,
			decode: spec.decode,
		}
		switch spec.name {
		case "anyType":
			c.anyType = true
			anyTypeContract = c
		case "QName":
			c.qname = true
		case "base64Binary":
			bytesContract = c
		}
		primitivesByType[spec.typ] = c
		builtinArgNames[qualifiedTypeName(spec.typ)] = c.name
		if _, ok := primitivesByName[c.name]; !ok {
			primitivesByName[c.name] = c
		}
		// 具名标量类型按底层 kind 复用同一编解码器。
		if spec.typ.PkgPath() == "" && spec.typ.Kind() != reflect.Slice && spec.typ.Kind() != reflect.Interface {
			if _, ok := primitivesByKind[spec.typ.Kind()]; !ok {
				primitivesByKind[spec.typ.Kind()] = c
			}
		}
	}
	builtinArgNames["any"] = anyTypeContract.name
}

// lookupPrimitive 按精确类型查找内置标量契约。
func lookupPrimitive(t reflect.Type) (*PrimitiveContract, bool) {
	c, ok := primitivesByType[t]
	return c, ok
}

// primitiveByKind 为具名标量类型（如 type Celsius float64）生成别名契约。
func primitiveByKind(t reflect.Type) (*PrimitiveContract, bool) {
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return bytesContract.withType(t), true
	}
	c, ok := primitivesByKind[t.Kind()]
	if !ok {
		return nil, false
	}
	return c.withType(t), true
}

// anyTypeFor 返回接口类型 t 对应的 anyType 契约。
func anyTypeFor(t reflect.Type) *PrimitiveContract {
	if t == anyTypeContract.typ {
		return anyTypeContract
	}
	return anyTypeContract.withType(t)
}

// AnyType 返回 any 对应的契约。
func AnyType() *PrimitiveContract {
	return anyTypeContract
}

// LookupPrimitiveName 返回稳定名对应的规范内置契约，例如 long 对应 int64。
func LookupPrimitiveName(name StableName) (*PrimitiveContract, bool) {
	c, ok := primitivesByName[name]
	return c, ok
}

// IsReservedNamespace 判断命名空间是否属于内置类型。
func IsReservedNamespace(ns string) bool {
	switch ns {
	case xmlwire.SchemaNamespace, xmlwire.SerializationNamespace, xmlwire.ArraysNamespace:
		return true
	}
	return false
}

func invalid(v reflect.Value, text string, err error) error {
	return merr.WrapErrInvalidValue(v.Type(), text, err)
}

func encodeBool(v reflect.Value) (string, error) {
	return strconv.FormatBool(v.Bool()), nil
}

func decodeBool(text string, v reflect.Value) error {
	b, err := strconv.ParseBool(strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.SetBool(b)
	return nil
}

func encodeSigned(v reflect.Value) (string, error) {
	return strconv.FormatInt(v.Int(), 10), nil
}

func signedDecoder[T constraints.Signed]() func(string, reflect.Value) error {
	bits := reflect.TypeFor[T]().Bits()
	return func(text string, v reflect.Value) error {
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, bits)
		if err != nil {
			return invalid(v, text, err)
		}
		v.SetInt(int64(T(n)))
		return nil
	}
}

func encodeUnsigned(v reflect.Value) (string, error) {
	return strconv.FormatUint(v.Uint(), 10), nil
}

func unsignedDecoder[T constraints.Unsigned]() func(string, reflect.Value) error {
	bits := reflect.TypeFor[T]().Bits()
	return func(text string, v reflect.Value) error {
		n, err := strconv.ParseUint(strings.TrimSpace(text), 10, bits)
		if err != nil {
			return invalid(v, text, err)
		}
		v.SetUint(uint64(T(n)))
		return nil
	}
}

func floatEncoder[T constraints.Float]() func(reflect.Value) (string, error) {
	bits := reflect.TypeFor[T]().Bits()
	return func(v reflect.Value) (string, error) {
		f := v.Float()
		switch {
		case math.IsInf(f, 1):
			return "INF", nil
		case math.IsInf(f, -1):
			return "-INF", nil
		case math.IsNaN(f):
			return "NaN", nil
		}
		return strconv.FormatFloat(float64(T(f)), 'g', -1, bits), nil
	}
}

func floatDecoder[T constraints.Float]() func(string, reflect.Value) error {
	bits := reflect.TypeFor[T]().Bits()
	return func(text string, v reflect.Value) error {
		s := strings.TrimSpace(text)
		switch s {
		case "INF":
			v.SetFloat(math.Inf(1))
			return nil
		case "-INF":
			v.SetFloat(math.Inf(-1))
			return nil
		case "NaN":
			v.SetFloat(math.NaN())
			return nil
		}
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return invalid(v, text, err)
		}
		v.SetFloat(float64(T(f)))
		return nil
	}
}

func encodeString(v reflect.Value) (string, error) {
	return v.String(), nil
}

func decodeString(text string, v reflect.Value) error {
	v.SetString(text)
	return nil
}

func encodeBytes(v reflect.Value) (string, error) {
	return base64.StdEncoding.EncodeToString(v.Bytes()), nil
}

func decodeBytes(text string, v reflect.Value) error {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.SetBytes(b)
	return nil
}

func encodeTime(v reflect.Value) (string, error) {
	return v.Interface().(time.Time).Format(time.RFC3339Nano), nil
}

func decodeTime(text string, v reflect.Value) error {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.Set(reflect.ValueOf(t))
	return nil
}

func encodeDuration(v reflect.Value) (string, error) {
	return FormatDuration(time.Duration(v.Int())), nil
}

func decodeDuration(text string, v reflect.Value) error {
	d, err := ParseDuration(strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.SetInt(int64(d))
	return nil
}

func encodeUUID(v reflect.Value) (string, error) {
	return v.Interface().(uuid.UUID).String(), nil
}

func decodeUUID(text string, v reflect.Value) error {
	id, err := uuid.Parse(strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.Set(reflect.ValueOf(id))
	return nil
}

func encodeURL(v reflect.Value) (string, error) {
	u := v.Interface().(url.URL)
	return u.String(), nil
}

func decodeURL(text string, v reflect.Value) error {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return invalid(v, text, err)
	}
	v.Set(reflect.ValueOf(*u))
	return nil
}

// FormatDuration 以 ISO 8601 的 PnDTnHnMnS 形式输出时长。
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	sb.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		sb.WriteString(strconv.FormatInt(int64(days), 10))
		sb.WriteByte('D')
	}
	if d == 0 {
		return sb.String()
	}
	sb.WriteByte('T')
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	if hours > 0 {
		sb.WriteString(strconv.FormatInt(int64(hours), 10))
		sb.WriteByte('H')
	}
	if minutes > 0 {
		sb.WriteString(strconv.FormatInt(int64(minutes), 10))
		sb.WriteByte('M')
	}
	if d > 0 {
		secs := d / time.Second
		frac := d - secs*time.Second
		sb.WriteString(strconv.FormatInt(int64(secs), 10))
		if frac > 0 {
			f := strconv.FormatInt(int64(frac)+int64(time.Second), 10)[1:]
			sb.WriteByte('.')
			sb.WriteString(strings.TrimRight(f, "0"))
		}
		sb.WriteByte('S')
	}
	return sb.String()
}

// ParseDuration 解析 FormatDuration 输出的 ISO 8601 时长，不支持年与月。
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
	}
	s = s[1:]
	var total time.Duration
	inTime := false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime {
				return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
			}
			inTime = true
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
		}
		num, unit := s[:i], s[i]
		s = s[i+1:]
		var scale time.Duration
		switch {
		case unit == 'D' && !inTime:
			scale = 24 * time.Hour
		case unit == 'H' && inTime:
			scale = time.Hour
		case unit == 'M' && inTime:
			scale = time.Minute
		case unit == 'S' && inTime:
			scale = time.Second
		default:
			return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
		}
		whole, frac, hasFrac := strings.Cut(num, ".")
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
		}
		total += time.Duration(n) * scale
		if hasFrac && frac != "" {
			if scale != time.Second || len(frac) > 9 {
				return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
			}
			nanos, err := strconv.ParseInt((frac + "000000000")[:9], 10, 64)
			if err != nil {
				return 0, merr.WrapErrParameterInvalidMsg("invalid duration %q", orig)
			}
			total += time.Duration(nanos)
		}
	}
	if neg {
		total = -total
	}
	return total, nil
}
