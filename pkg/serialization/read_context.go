package serialization

import (
	"reflect"
	"strings"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// ReadContext 是一次反序列化调用的状态，只能使用一次。
type ReadContext struct {
	r      *xmlwire.Reader
	opts   Options
	reg    *contract.Registry
	logger *log.MLogger

	ids        *readIDTable
	known      knownTypeStack
	additional *additionalKnownTypes

	// pendingID 是当前元素的 z:Id，由编解码器在分配对象后通过 registerPending 登记。
	pendingID string

	items      int
	depth      int
	extMembers int
}

func newReadContext(r *xmlwire.Reader, opts Options, logger *log.MLogger) (*ReadContext, error) {
	additional, err := resolveAdditionalKnownTypes(opts.Registry, opts.AdditionalKnownTypes)
	if err != nil {
		return nil, err
	}
	return &ReadContext{
		r:          r,
		opts:       opts,
		reg:        opts.Registry,
		logger:     logger,
		ids:        newReadIDTable(),
		additional: additional,
	}, nil
}

// ItemCount 返回已经计入配额的对象数。
func (ctx *ReadContext) ItemCount() int {
	return ctx.items
}

// Options 返回本次调用生效的选项。
func (ctx *ReadContext) Options() Options {
	return ctx.opts
}

func (ctx *ReadContext) incrementItems(n int) error {
	ctx.items += n
	if ctx.items > ctx.opts.MaxItemsInGraph {
		return merr.WrapErrMaxItemsExceeded(ctx.opts.MaxItemsInGraph, ctx.items)
	}
	return nil
}

func (ctx *ReadContext) enter() error {
	ctx.depth++
	if ctx.depth > ctx.opts.MaxDepth {
		return merr.WrapErrMaxDepthExceeded(ctx.opts.MaxDepth)
	}
	return nil
}

func (ctx *ReadContext) leave() {
	ctx.depth--
}

// readRoot 校验根元素名称并读取根对象，根元素之后不允许再有内容。
func (ctx *ReadContext) readRoot(rootContract contract.Contract) (reflect.Value, error) {
	r := ctx.r
	node, err := r.MoveToContent()
	if err != nil {
		return reflect.Value{}, err
	}
	name := rootContract.TopLevelElement()
	if ctx.opts.RootName != "" {
		name = contract.StableName{Name: ctx.opts.RootName, Namespace: ctx.opts.RootNamespace}
	}
	if node != xmlwire.Element || r.LocalName() != name.Name || r.NamespaceURI() != name.Namespace {
		return reflect.Value{}, merr.WrapErrUnexpectedNode("Element "+name.String(), describeNode(r))
	}

	slot := rootContract.Type()
	if slot.Kind() != reflect.Interface {
		slot = reflect.PointerTo(slot)
	}
	v, err := ctx.readValue(slot, rootContract)
	if err != nil {
		return reflect.Value{}, err
	}
	if node, err = r.MoveToContent(); err != nil {
		return reflect.Value{}, err
	}
	if node != xmlwire.EOF {
		return reflect.Value{}, merr.WrapErrWireFormat("unexpected content after root element", describeNode(r))
	}
	return v, nil
}

// readValue 读取位于开始标签上的元素，返回可赋给 slot 的值。
//
// 依次处理 z:Ref、i:nil、i:type 与 z:Id，再交给实际契约的编解码器。
func (ctx *ReadContext) readValue(slot reflect.Type, declared contract.Contract) (reflect.Value, error) {
	if err := ctx.enter(); err != nil {
		return reflect.Value{}, err
	}
	defer ctx.leave()
	r := ctx.r

	if ref, ok := r.GetAttribute("Ref", xmlwire.SerializationNamespace); ok {
		entry, err := ctx.ids.lookup(ref)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := r.Skip(); err != nil {
			return reflect.Value{}, err
		}
		if entry.node != nil {
			return ctx.readExtensionRef(ref, entry.node, slot, declared)
		}
		if entry.inProgress && !holdsReference(slot) {
			return reflect.Value{}, merr.WrapErrReferenceValueType(ref, slot)
		}
		return convertTo(entry.value, slot)
	}

	if isNil, ok := r.GetAttribute("nil", xmlwire.InstanceNamespace); ok && strings.TrimSpace(isNil) == "true" {
		if err := r.Skip(); err != nil {
			return reflect.Value{}, err
		}
		return reflect.Zero(slot), nil
	}

	actual := declared
	if raw, ok := r.GetAttribute("type", xmlwire.InstanceNamespace); ok {
		name, err := ctx.qualify(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		pop := ctx.known.push(declared.KnownTypes())
		actual, err = ctx.resolveName(name, declared)
		pop()
		if err != nil {
			return reflect.Value{}, err
		}
		if declared.Kind() == contract.KindLegacy && actual.Kind() != contract.KindLegacy {
			return reflect.Value{}, merr.WrapErrLegacyTypeMismatch(declared.Type(), actual.Type())
		}
	}
	if cc, ok := actual.(*contract.CollectionContract); ok && cc.IsReadOnly() {
		return reflect.Value{}, merr.WrapErrReadOnlyCollection(cc.Type(), cc.ReadOnlyMessage())
	}

	id, _ := r.GetAttribute("Id", xmlwire.SerializationNamespace)
	ctx.pendingID = id
	pop := ctx.known.push(actual.KnownTypes())
	v, err := CodecFor(actual).Read(r, ctx, actual)
	pop()
	ctx.pendingID = ""
	if err != nil {
		return reflect.Value{}, err
	}

	out, err := convertTo(v, slot)
	if err != nil {
		return reflect.Value{}, err
	}
	if id != "" {
		registered := v
		if k := out.Kind(); k == reflect.Pointer || k == reflect.Map {
			registered = out
		}
		if err := ctx.ids.complete(id, registered); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

// registerPending 在读取子元素前登记当前元素的 z:Id，使循环引用可以指回正在构造的对象。
func (ctx *ReadContext) registerPending(v reflect.Value) error {
	id := ctx.pendingID
	ctx.pendingID = ""
	if id == "" {
		return nil
	}
	return ctx.ids.addNew(id, v)
}

// realObject 调用 GetRealObject，并让之后的 z:Ref 指向替换后的对象。
func (ctx *ReadContext) realObject(p reflect.Value, id string, t reflect.Type) (reflect.Value, error) {
	real, err := p.Interface().(contract.ObjectReference).GetRealObject()
	if err != nil {
		return reflect.Value{}, merr.WrapErrHookFailed("GetRealObject", t, err)
	}
	rv := reflect.ValueOf(real)
	if id != "" {
		ctx.ids.replace(id, rv)
	}
	return rv, nil
}

// qualify 把属性中的 "p:local" 解析为稳定名。
func (ctx *ReadContext) qualify(raw string) (contract.StableName, error) {
	prefix, local := xmlwire.SplitQName(strings.TrimSpace(raw))
	ns, ok := ctx.r.LookupNamespace(prefix)
	if !ok {
		return contract.StableName{}, merr.WrapErrWireFormat("undeclared prefix "+prefix, raw)
	}
	return contract.StableName{Name: local, Namespace: ns}, nil
}

// resolveName 解析 i:type 或 z:FactoryType 中的名称：声明契约本身、已知类型栈、
// 调用方追加的已知类型、注册表中的已知类型，最后是 TypeResolver。
func (ctx *ReadContext) resolveName(name contract.StableName, declared contract.Contract) (contract.Contract, error) {
	if declared != nil && declared.StableName() == name {
		return declared, nil
	}
	if c, ok := ctx.known.lookup(name); ok {
		return c, nil
	}
	if c, ok := ctx.additional.lookup(name); ok {
		return c, nil
	}
	if c, ok := ctx.reg.LookupKnown(name); ok {
		return c, nil
	}
	if ctx.opts.TypeResolver != nil {
		if t, ok := ctx.opts.TypeResolver.ResolveName(name); ok {
			return ctx.reg.GetContract(t)
		}
	}
	return nil, merr.WrapErrUnknownType(name.Name, name.Namespace, "no known type with this name")
}

func holdsReference(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map:
		return true
	}
	return false
}

// convertTo 把编解码器产出的值适配到目标槽位：
// 直接赋值、解引用指针、分配新指针，或在数值类型之间转换。
func convertTo(v reflect.Value, slot reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(slot), nil
	}
	if v.Kind() == reflect.Interface && slot.Kind() != reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(slot), nil
		}
		v = v.Elem()
	}
	vt := v.Type()
	switch {
	case vt == slot:
		return v, nil
	case vt.AssignableTo(slot):
		out := reflect.New(slot).Elem()
		out.Set(v)
		return out, nil
	case vt.Kind() == reflect.Pointer && vt.Elem().AssignableTo(slot):
		if v.IsNil() {
			return reflect.Zero(slot), nil
		}
		out := reflect.New(slot).Elem()
		out.Set(v.Elem())
		return out, nil
	case slot.Kind() == reflect.Pointer && vt.AssignableTo(slot.Elem()):
		p := reflect.New(slot.Elem())
		p.Elem().Set(v)
		return p, nil
	case scalarConvertible(vt, slot):
		return v.Convert(slot), nil
	case slot.Kind() == reflect.Pointer && scalarConvertible(vt, slot.Elem()):
		p := reflect.New(slot.Elem())
		p.Elem().Set(v.Convert(slot.Elem()))
		return p, nil
	}
	return reflect.Value{}, merr.WrapErrInvalidValue(slot, vt.String(), nil)
}

func scalarConvertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	fk, tk := from.Kind(), to.Kind()
	return fk == tk || (isNumeric(fk) && isNumeric(tk))
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
