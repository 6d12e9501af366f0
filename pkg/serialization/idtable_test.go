package serialization

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

func TestWriteIDTable(t *testing.T) {
	ids := newWriteIDTable()
	a, b := &Address{}, &Address{}
	ka, _ := identityOf(reflect.ValueOf(a))
	kb, _ := identityOf(reflect.ValueOf(b))

	id, isNew := ids.assign(ka)
	assert.Equal(t, "i1", id)
	assert.True(t, isNew)
	id, isNew = ids.assign(ka)
	assert.Equal(t, "i1", id)
	assert.False(t, isNew)

	ids.observe("i7")
	ids.observe("x3")
	id, _ = ids.assign(kb)
	assert.Equal(t, "i8", id)

	_, ok := identityOf(reflect.ValueOf(Address{}))
	assert.False(t, ok)
	_, ok = identityOf(reflect.ValueOf((*Address)(nil)))
	assert.False(t, ok)
}

func TestReadIDTable(t *testing.T) {
	ids := newReadIDTable()
	p := reflect.ValueOf(&Node{})

	require.NoError(t, ids.addNew("i1", p))
	assert.ErrorIs(t, ids.addNew("i1", p), merr.ErrReferenceDuplicate)

	entry, err := ids.lookup("i1")
	require.NoError(t, err)
	assert.True(t, entry.inProgress)

	require.NoError(t, ids.complete("i1", p))
	assert.False(t, entry.inProgress)
	assert.ErrorIs(t, ids.complete("i1", p), merr.ErrReferenceDuplicate)

	require.NoError(t, ids.complete("i2", reflect.ValueOf(3)))
	_, err = ids.lookup("i3")
	assert.ErrorIs(t, err, merr.ErrReferenceNotFound)

	node := &contract.PrimitiveNode{NodeHeader: contract.NodeHeader{Local: "V"}, Value: "1"}
	require.NoError(t, ids.addExtension("i4", node))
	assert.ErrorIs(t, ids.addExtension("i4", node), merr.ErrReferenceDuplicate)
	assert.ErrorIs(t, ids.addNew("i4", p), merr.ErrReferenceDuplicate)
	entry, err = ids.lookup("i4")
	require.NoError(t, err)
	assert.Same(t, node, entry.node)

	ids.forget("i4")
	require.NoError(t, ids.addNew("i4", p))
	entry, err = ids.lookup("i4")
	require.NoError(t, err)
	assert.Nil(t, entry.node)
}

func TestClassifyNode(t *testing.T) {
	leaf := func(local, ns, text string) contract.ExtensionNode {
		return &contract.PrimitiveNode{NodeHeader: contract.NodeHeader{Local: local, Namespace: ns}, Value: text}
	}
	header := contract.NodeHeader{Local: "X", Namespace: "urn:a"}

	assert.IsType(t, &contract.PrimitiveNode{}, classifyNode(header, []contract.RawItem{{Text: "1"}, {Text: "2"}}))
	assert.Equal(t, "12", classifyNode(header, []contract.RawItem{{Text: "1"}, {Text: "2"}}).(*contract.PrimitiveNode).Value)

	items := []contract.RawItem{{Node: leaf("Item", "urn:a", "1")}, {Node: leaf("Item", "urn:a", "2")}}
	assert.IsType(t, &contract.CollectionNode{}, classifyNode(header, items))

	members := []contract.RawItem{{Node: leaf("A", "urn:a", "1")}, {Node: leaf("B", "urn:a", "2")}}
	assert.IsType(t, &contract.ClassNode{}, classifyNode(header, members))

	spaced := []contract.RawItem{{Node: leaf("A", "urn:a", "1")}, {Text: "\n  "}, {Node: leaf("B", "urn:a", "2")}}
	class, ok := classifyNode(header, spaced).(*contract.ClassNode)
	require.True(t, ok)
	assert.Len(t, class.Members, 2)
	assert.Len(t, class.Content, 3)

	mixed := []contract.RawItem{{Text: "hi "}, {Node: leaf("B", "urn:a", "2")}}
	assert.IsType(t, &contract.RawXMLNode{}, classifyNode(header, mixed))

	twoSpaces := []contract.RawItem{{Node: leaf("A", "urn:a", "1")}, {Node: leaf("A", "urn:b", "2")}}
	assert.IsType(t, &contract.RawXMLNode{}, classifyNode(header, twoSpaces))

	foreign := header
	foreign.Attrs = []xmlwire.Attr{{Local: "lang", Value: "en"}}
	assert.IsType(t, &contract.RawXMLNode{}, classifyNode(foreign, nil))

	legacy := header
	legacy.Attrs = []xmlwire.Attr{{Prefix: "z", Local: "FactoryType", Space: xmlwire.SerializationNamespace, Value: "a:B"}}
	assert.IsType(t, &contract.LegacyNode{}, classifyNode(legacy, members))
}

func TestConvertTo(t *testing.T) {
	out, err := convertTo(reflect.ValueOf(int64(7)), reflect.TypeFor[int32]())
	require.NoError(t, err)
	assert.Equal(t, int32(7), out.Interface())

	out, err = convertTo(reflect.ValueOf(&Address{City: "Pisa"}), reflect.TypeFor[Address]())
	require.NoError(t, err)
	assert.Equal(t, Address{City: "Pisa"}, out.Interface())

	out, err = convertTo(reflect.ValueOf("x"), reflect.TypeFor[*string]())
	require.NoError(t, err)
	assert.Equal(t, "x", *out.Interface().(*string))

	out, err = convertTo(reflect.Value{}, reflect.TypeFor[*Address]())
	require.NoError(t, err)
	assert.True(t, out.IsNil())

	_, err = convertTo(reflect.ValueOf("x"), reflect.TypeFor[int]())
	assert.ErrorIs(t, err, merr.ErrWireInvalidValue)
}

func TestKnownTypeStack(t *testing.T) {
	reg := contract.NewRegistry()
	c, err := contract.ContractFor[Drawing](reg)
	require.NoError(t, err)
	circle, err := contract.ContractFor[Circle](reg)
	require.NoError(t, err)

	var stack knownTypeStack
	assert.False(t, stack.contains(circle))
	pop := stack.push(c.KnownTypes())
	assert.True(t, stack.contains(circle))
	found, ok := stack.lookup(circle.StableName())
	assert.True(t, ok)
	assert.Same(t, circle, found)
	pop()
	assert.False(t, stack.contains(circle))

	stack.push(nil)()
	assert.Empty(t, stack.tables)
}
