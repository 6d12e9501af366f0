package serialization

import (
	"reflect"
	"strconv"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
)

// identity 标识一个具备引用语义的对象：指针或 map 的底层地址加上动态类型。
// 同一地址上的结构体与其首个字段地址相同，需要类型区分。
type identity struct {
	ptr uintptr
	typ reflect.Type
}

func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type()}, true
	}
	return identity{}, false
}

// writeIDTable 为一次写调用分配 z:Id。
type writeIDTable struct {
	ids  map[identity]string
	next int
}

func newWriteIDTable() *writeIDTable {
	return &writeIDTable{ids: make(map[identity]string)}
}

// assign 返回对象的 id；isNew 为 false 表示对象已经写出过，只需写 z:Ref。
func (t *writeIDTable) assign(key identity) (id string, isNew bool) {
	if id, ok := t.ids[key]; ok {
		return id, false
	}
	id = t.nextID()
	t.ids[key] = id
	return id, true
}

func (t *writeIDTable) nextID() string {
	t.next++
	return "i" + strconv.Itoa(t.next)
}

// observe 推进计数器，使回放的扩展数据中出现的 id 不会与之后分配的 id 冲突。
func (t *writeIDTable) observe(id string) {
	if len(id) < 2 || id[0] != 'i' {
		return
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return
	}
	if n > t.next {
		t.next = n
	}
}

type readEntry struct {
	value      reflect.Value
	inProgress bool
	// node 非空表示对象位于捕获的扩展数据中，尚未按任何契约读出。
	node contract.ExtensionNode
}

// readIDTable 记录一次读调用中带 z:Id 的对象。
// 类与键值对序列化对象在读取成员前登记并标记为进行中，以支持循环引用。
type readIDTable struct {
	objects map[string]*readEntry
}

func newReadIDTable() *readIDTable {
	return &readIDTable{objects: make(map[string]*readEntry)}
}

// addNew 登记一个刚分配、尚未读完的对象。
func (t *readIDTable) addNew(id string, v reflect.Value) error {
	if _, ok := t.objects[id]; ok {
		return merr.WrapErrReferenceDuplicate(id)
	}
	t.objects[id] = &readEntry{value: v, inProgress: true}
	return nil
}

// complete 标记对象读取完毕；未登记的 id 在这里首次登记。
func (t *readIDTable) complete(id string, v reflect.Value) error {
	entry, ok := t.objects[id]
	if !ok {
		t.objects[id] = &readEntry{value: v}
		return nil
	}
	if !entry.inProgress {
		return merr.WrapErrReferenceDuplicate(id)
	}
	entry.inProgress = false
	return nil
}

// addExtension 登记扩展数据中带 z:Id 的节点。
func (t *readIDTable) addExtension(id string, node contract.ExtensionNode) error {
	if _, ok := t.objects[id]; ok {
		return merr.WrapErrReferenceDuplicate(id)
	}
	t.objects[id] = &readEntry{node: node}
	return nil
}

// forget 移除扩展节点的登记，由随后读出的对象重新登记同一个 id。
func (t *readIDTable) forget(id string) {
	delete(t.objects, id)
}

// replace 用 GetRealObject 返回的对象替换已登记的对象。
func (t *readIDTable) replace(id string, v reflect.Value) {
	if entry, ok := t.objects[id]; ok {
		entry.value = v
	}
}

func (t *readIDTable) lookup(id string) (*readEntry, error) {
	entry, ok := t.objects[id]
	if !ok {
		return nil, merr.WrapErrReferenceNotFound(id)
	}
	return entry, nil
}
