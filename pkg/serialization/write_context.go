package serialization

import (
	"reflect"
	"slices"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// cycleGuardDepth 之后开始记录访问路径，用于在不保留引用时发现循环。
const cycleGuardDepth = 64

// WriteContext 是一次序列化调用的状态，只能使用一次。
type WriteContext struct {
	w      *xmlwire.Writer
	opts   Options
	reg    *contract.Registry
	logger *log.MLogger

	ids        *writeIDTable
	known      knownTypeStack
	additional *additionalKnownTypes

	items      int
	depth      int
	visited    []identity
	extMembers int
}

func newWriteContext(w *xmlwire.Writer, opts Options, logger *log.MLogger) (*WriteContext, error) {
	additional, err := resolveAdditionalKnownTypes(opts.Registry, opts.AdditionalKnownTypes)
	if err != nil {
		return nil, err
	}
	return &WriteContext{
		w:          w,
		opts:       opts,
		reg:        opts.Registry,
		logger:     logger,
		ids:        newWriteIDTable(),
		additional: additional,
	}, nil
}

// ItemCount 返回已经计入配额的对象数。
func (ctx *WriteContext) ItemCount() int {
	return ctx.items
}

// Options 返回本次调用生效的选项。
func (ctx *WriteContext) Options() Options {
	return ctx.opts
}

func (ctx *WriteContext) incrementItems(n int) error {
	ctx.items += n
	if ctx.items > ctx.opts.MaxItemsInGraph {
		return merr.WrapErrMaxItemsExceeded(ctx.opts.MaxItemsInGraph, ctx.items)
	}
	return nil
}

// writeRoot 写出根元素。根元素总是声明 i 前缀，保留引用时同时声明 z 前缀。
func (ctx *WriteContext) writeRoot(root reflect.Value, rootContract contract.Contract) error {
	if rootContract == nil {
		if !root.IsValid() {
			return merr.WrapErrParameterInvalidMsg("cannot infer the contract of a nil root")
		}
		var err error
		rootContract, err = ctx.reg.GetContract(root.Type())
		if err != nil {
			return err
		}
	}
	name := rootContract.TopLevelElement()
	if ctx.opts.RootName != "" {
		name = contract.StableName{Name: ctx.opts.RootName, Namespace: ctx.opts.RootNamespace}
	}

	w := ctx.w
	w.WriteStartElement(name.Name, name.Namespace)
	w.WriteNamespaceDeclaration(xmlwire.InstancePrefix, xmlwire.InstanceNamespace)
	if ctx.opts.PreserveReferences {
		w.WriteNamespaceDeclaration(xmlwire.SerializationPrefix, xmlwire.SerializationNamespace)
	}
	if err := ctx.writeValue(root, rootContract, false); err != nil {
		return err
	}
	w.WriteEndElement()
	return w.Err()
}

// writeMember 写出一个完整的子元素：开始标签、值与结束标签。
func (ctx *WriteContext) writeMember(local, ns string, v reflect.Value, declared contract.Contract, conflict bool) error {
	ctx.w.WriteStartElement(local, ns)
	if err := ctx.writeValue(v, declared, conflict); err != nil {
		return err
	}
	ctx.w.WriteEndElement()
	return ctx.w.Err()
}

// writeValue 在已打开的开始标签上写出保留属性与内容。
//
// 依次处理 nil、引用、i:type 与 z:Id，再交给实际契约的编解码器。
func (ctx *WriteContext) writeValue(v reflect.Value, declared contract.Contract, conflict bool) error {
	w := ctx.w
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}
	if isNilValue(v) {
		w.WriteQualifiedAttribute(xmlwire.InstanceNamespace, "nil", "true")
		return nil
	}

	ref, hasIdentity := identityOf(v)
	elem := v
	if v.Kind() == reflect.Pointer {
		elem = v.Elem()
	}

	actual := declared
	if declared == nil || declared.Type() != elem.Type() {
		var err error
		actual, err = ctx.reg.GetContract(elem.Type())
		if err != nil {
			return err
		}
	}

	preserve := hasIdentity && (ctx.opts.PreserveReferences || actual.IsReference())
	var id string
	if preserve {
		var isNew bool
		id, isNew = ctx.ids.assign(ref)
		if !isNew {
			w.WriteQualifiedAttribute(xmlwire.SerializationNamespace, "Ref", id)
			return nil
		}
	}

	if conflict || declared == nil || declared.Type().Kind() == reflect.Interface || actual != declared {
		var declaredKnown *contract.KnownTypeTable
		if declared != nil {
			declaredKnown = declared.KnownTypes()
		}
		pop := ctx.known.push(declaredKnown)
		name, err := ctx.typeName(actual)
		pop()
		if err != nil {
			return err
		}
		w.WriteQNameAttribute(xmlwire.InstanceNamespace, "type", name.Namespace, name.Name)
	}
	if id != "" {
		w.WriteQualifiedAttribute(xmlwire.SerializationNamespace, "Id", id)
	}

	ctx.depth++
	defer func() { ctx.depth-- }()
	if hasIdentity && !preserve && ctx.depth > cycleGuardDepth {
		if slices.Contains(ctx.visited, ref) {
			return merr.WrapErrReferenceCycle(actual.Type(), ctx.depth)
		}
		ctx.visited = append(ctx.visited, ref)
		defer func() { ctx.visited = ctx.visited[:len(ctx.visited)-1] }()
	}

	pop := ctx.known.push(actual.KnownTypes())
	defer pop()
	return CodecFor(actual).Write(w, elem, ctx, actual)
}

// typeName 解析写入 i:type 的名称：已知类型栈、调用方追加的已知类型、
// 注册表中的已知类型，最后是 TypeResolver。
func (ctx *WriteContext) typeName(c contract.Contract) (contract.StableName, error) {
	if ctx.known.contains(c) || ctx.additional.contains(c) || ctx.reg.IsKnown(c) {
		return c.StableName(), nil
	}
	if ctx.opts.TypeResolver != nil {
		if name, ok := ctx.opts.TypeResolver.TryResolveType(c.Type()); ok {
			return name, nil
		}
	}
	return contract.StableName{}, merr.WrapErrUnknownType(c.StableName().Name, c.StableName().Namespace,
		"type "+c.Type().String()+" is not a known type, declare it in KnownTypes or AdditionalKnownTypes")
}

// replayExtension 回放插入位置为 index 的扩展成员，返回下一个未回放成员的下标。
// index 为 -1 时回放剩余的全部成员。
func (ctx *WriteContext) replayExtension(members []contract.ExtensionMember, next, index int) (int, error) {
	for next < len(members) && (index < 0 || members[next].MemberIndex <= index) {
		if err := ctx.replayNode(members[next].Node); err != nil {
			return next, err
		}
		ctx.extMembers++
		next++
	}
	return next, nil
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// addressable 返回可取地址的 v，必要时复制一份。
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Elem()
}

// additionalKnownTypes 是调用方通过选项追加的已知类型。
type additionalKnownTypes struct {
	byName map[contract.StableName]contract.Contract
}

func resolveAdditionalKnownTypes(reg *contract.Registry, types []reflect.Type) (*additionalKnownTypes, error) {
	a := &additionalKnownTypes{byName: make(map[contract.StableName]contract.Contract, len(types))}
	for _, t := range types {
		c, err := reg.GetContract(t)
		if err != nil {
			return nil, err
		}
		if existing, ok := a.byName[c.StableName()]; ok && existing.Type() != c.Type() {
			return nil, merr.WrapErrDuplicateStableName(c.StableName().String(), existing.Type(), c.Type())
		}
		a.byName[c.StableName()] = c
	}
	return a, nil
}

func (a *additionalKnownTypes) lookup(name contract.StableName) (contract.Contract, bool) {
	c, ok := a.byName[name]
	return c, ok
}

func (a *additionalKnownTypes) contains(c contract.Contract) bool {
	found, ok := a.byName[c.StableName()]
	return ok && found.Type() == c.Type()
}
