package serialization

import (
	"cmp"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

type classCodec struct{}

func (classCodec) Write(w *xmlwire.Writer, v reflect.Value, ctx *WriteContext, c contract.Contract) error {
	cc := c.(*contract.ClassContract)
	if !cc.IsKeyValue() {
		if err := ctx.incrementItems(1); err != nil {
			return err
		}
	}
	v = addressable(v)
	if cc.HasOnSerializing() {
		if err := v.Addr().Interface().(contract.SerializingHook).OnSerializing(); err != nil {
			return merr.WrapErrHookFailed("OnSerializing", cc.Type(), err)
		}
	}

	var ext []contract.ExtensionMember
	if idx := cc.ExtensionDataIndex(); idx != nil && !ctx.opts.IgnoreExtensionData {
		if data, _ := v.FieldByIndex(idx).Interface().(*contract.ExtensionData); data.Len() > 0 {
			ext = slices.Clone(data.Members)
			slices.SortStableFunc(ext, func(a, b contract.ExtensionMember) int {
				return cmp.Compare(a.MemberIndex, b.MemberIndex)
			})
		}
	}

	var (
		next int
		err  error
	)
	members := cc.AllMembers()
	for i := range members {
		m := &members[i]
		if next, err = ctx.replayExtension(ext, next, i); err != nil {
			return err
		}
		fv := v.FieldByIndex(m.Index)
		if !m.EmitDefault && fv.IsZero() {
			if m.Required {
				return merr.WrapErrRequiredMemberNotEmitted(cc.Type(), m.Name)
			}
			continue
		}
		if err := ctx.writeMember(m.Name, m.Namespace, fv, m.Contract(), m.Conflict); err != nil {
			return err
		}
	}
	if _, err := ctx.replayExtension(ext, next, -1); err != nil {
		return err
	}

	if cc.HasOnSerialized() {
		if err := v.Addr().Interface().(contract.SerializedHook).OnSerialized(); err != nil {
			return merr.WrapErrHookFailed("OnSerialized", cc.Type(), err)
		}
	}
	return w.Err()
}

// Read 以空白对象开始：分配、登记 z:Id、OnDeserializing，随后按成员顺序向前线性匹配子元素。
// 匹配不上的元素作为扩展数据保存或跳过。
func (classCodec) Read(r *xmlwire.Reader, ctx *ReadContext, c contract.Contract) (reflect.Value, error) {
	cc := c.(*contract.ClassContract)
	if !cc.IsKeyValue() {
		if err := ctx.incrementItems(1); err != nil {
			return reflect.Value{}, err
		}
	}
	id := ctx.pendingID
	p := reflect.New(cc.Type())
	if err := ctx.registerPending(p); err != nil {
		return reflect.Value{}, err
	}
	v := p.Elem()
	if cc.HasOnDeserializing() {
		if err := p.Interface().(contract.DeserializingHook).OnDeserializing(); err != nil {
			return reflect.Value{}, merr.WrapErrHookFailed("OnDeserializing", cc.Type(), err)
		}
	}

	capture := cc.HasExtensionData() && !ctx.opts.IgnoreExtensionData
	var ext *contract.ExtensionData
	members := cc.AllMembers()
	last := -1

	if err := r.ReadStartElement(); err != nil {
		return reflect.Value{}, err
	}
	for {
		node, err := r.MoveToContent()
		if err != nil {
			return reflect.Value{}, err
		}
		if node == xmlwire.EndElement {
			break
		}
		if node != xmlwire.Element {
			return reflect.Value{}, merr.WrapErrUnexpectedNode("member element of "+cc.StableName().String(), node.String())
		}

		idx := matchMember(members, last+1, r.LocalName(), r.NamespaceURI())
		if idx < 0 {
			if !capture {
				ctx.logger.WithRateGroup("datacontract.unknown_member", 1, 60).
					RatedDebug(1, "skip unknown member",
						log.FieldStableName(cc.StableName().Name, cc.StableName().Namespace),
						zap.String("element", "{"+r.NamespaceURI()+"}"+r.LocalName()))
				if err := r.Skip(); err != nil {
					return reflect.Value{}, err
				}
				continue
			}
			n, err := ctx.captureNode()
			if err != nil {
				return reflect.Value{}, err
			}
			if ext == nil {
				ext = &contract.ExtensionData{}
			}
			ext.Members = append(ext.Members, contract.ExtensionMember{MemberIndex: last + 1, Node: n})
			continue
		}

		for j := last + 1; j < idx; j++ {
			if members[j].Required {
				return reflect.Value{}, merr.WrapErrRequiredMemberMissing(cc.Type(), members[j].Name,
					"found "+members[idx].Name+" first")
			}
		}
		m := &members[idx]
		if err := ctx.readMember(cc, m, v.FieldByIndex(m.Index)); err != nil {
			return reflect.Value{}, err
		}
		last = idx
	}
	for j := last + 1; j < len(members); j++ {
		if members[j].Required {
			return reflect.Value{}, merr.WrapErrRequiredMemberMissing(cc.Type(), members[j].Name, "end of element")
		}
	}
	if err := r.ReadEndElement(); err != nil {
		return reflect.Value{}, err
	}

	if ext != nil {
		v.FieldByIndex(cc.ExtensionDataIndex()).Set(reflect.ValueOf(ext))
		ctx.extMembers += ext.Len()
	}
	if cc.HasOnDeserialized() {
		if err := p.Interface().(contract.DeserializedHook).OnDeserialized(); err != nil {
			return reflect.Value{}, merr.WrapErrHookFailed("OnDeserialized", cc.Type(), err)
		}
	}
	if cc.HasObjectReference() {
		return ctx.realObject(p, id, cc.Type())
	}
	return p, nil
}

func matchMember(members []contract.Member, from int, local, ns string) int {
	for j := from; j < len(members); j++ {
		if members[j].Name == local && members[j].Namespace == ns {
			return j
		}
	}
	return -1
}

// readMember 读取一个成员元素。getonly 成员先读成独立的值，再并入字段中已有的集合。
func (ctx *ReadContext) readMember(cc *contract.ClassContract, m *contract.Member, field reflect.Value) error {
	val, err := ctx.readValue(m.Type, m.Contract())
	if err != nil {
		return err
	}
	if !m.GetOnly {
		field.Set(val)
		return nil
	}
	if isNilValue(val) {
		return nil
	}
	coll := m.Contract().(*contract.CollectionContract)
	switch field.Kind() {
	case reflect.Slice:
		field.Set(reflect.AppendSlice(field, val))
		return nil
	case reflect.Array:
		field.Set(val)
		return nil
	case reflect.Map:
		if field.IsNil() {
			return merr.WrapErrGetOnlyCollectionNil(cc.Type(), m.Name)
		}
		iter := val.MapRange()
		for iter.Next() {
			field.SetMapIndex(iter.Key(), iter.Value())
		}
		return nil
	}

	target := field
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return merr.WrapErrGetOnlyCollectionNil(cc.Type(), m.Name)
		}
	} else {
		target = field.Addr()
	}
	src := val
	if src.Kind() != reflect.Pointer {
		src = addressable(src).Addr()
	}
	return mergeMethodCollection(coll, target, src)
}

// mergeMethodCollection 遍历 src 并逐个调用 target 的添加方法。
func mergeMethodCollection(coll *contract.CollectionContract, target, src reflect.Value) error {
	add := target.MethodByName(coll.AddMethod())
	seq := src.MethodByName(coll.EnumerateMethod()).Call(nil)[0]
	if coll.IsDictionary() {
		for k, v := range seq.Seq2() {
			if err := callAdd(add, coll.Type(), k, v); err != nil {
				return err
			}
		}
		return nil
	}
	for item := range seq.Seq() {
		if err := callAdd(add, coll.Type(), item); err != nil {
			return err
		}
	}
	return nil
}

func callAdd(add reflect.Value, t reflect.Type, args ...reflect.Value) error {
	out := add.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return merr.WrapErrHookFailed("Add", t, out[0].Interface().(error))
	}
	return nil
}
