package contract

import (
	"encoding/xml"
	"iter"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

const testNamespace = DefaultNamespacePrefix + "github.com/lk2023060901/zeus-datacontract/pkg/contract"

type Address struct {
	Street string
	City   string `dc:",order=1"`
}

type Person struct {
	Name    string `dc:",required"`
	Age     int    `dc:",omitempty"`
	Home    *Address
	Tags    []string `dc:",getonly"`
	secret  string
	Ignored string `dc:"-"`
}

type Account struct {
	ID    int64  `dc:"Id"`
	Owner string `dc:"Owner,order=1"`
	Cache string
}

func (Account) DataContract() ContractInfo {
	return ContractInfo{Name: "Acct", Namespace: "urn:bank"}
}

type Animal struct {
	Name string
	Legs int
	Ext  *ExtensionData
}

type Dog struct {
	Animal
	Breed string
	Legs  string
}

type TwoBases struct {
	Animal
	Address
}

type PointerBase struct {
	*Animal
}

type DuplicateNames struct {
	A string `dc:"X"`
	B string `dc:"X"`
}

type TaggedHidden struct {
	x int `dc:"X"`
}

type ScalarGetOnly struct {
	N int `dc:",getonly"`
}

type Node struct {
	Value    int
	Next     *Node
	Children []*Node
}

type Color int32

func (Color) EnumDescription() EnumInfo {
	return EnumInfo{
		Flags: true,
		Members: []EnumMember{
			{Name: "None", Value: 0},
			{Name: "Red", Value: 1},
			{Name: "Green", Value: 2},
			{Name: "Blue", Value: 4},
		},
	}
}

type Suit uint8

func (Suit) EnumDescription() EnumInfo {
	return EnumInfo{Name: "CardSuit", Namespace: "urn:cards", Members: []EnumMember{
		{Name: "Hearts", Value: 1},
		{Name: "Spades", Value: 1},
	}}
}

type Celsius float64

type Money struct {
	Amount   int64
	Currency string
}

func (m Money) GetObjectData(info *SerializationInfo) error {
	if err := info.AddValue("amount", m.Amount); err != nil {
		return err
	}
	return info.AddValue("currency", m.Currency)
}

func (m *Money) SetObjectData(info *SerializationInfo) error {
	amount, err := InfoValue[int64](info, "amount")
	if err != nil {
		return err
	}
	currency, err := InfoValue[string](info, "currency")
	if err != nil {
		return err
	}
	m.Amount, m.Currency = amount, currency
	return nil
}

type WriteOnlyLegacy struct{}

func (WriteOnlyLegacy) GetObjectData(*SerializationInfo) error { return nil }

type Blob struct {
	Data string
}

func (b *Blob) WriteXML(w *xmlwire.Writer) error {
	w.WriteString(b.Data)
	return w.Err()
}

func (b *Blob) ReadXML(r *xmlwire.Reader) error {
	text, err := r.ReadElementText()
	b.Data = text
	return err
}

type IntBag struct {
	items []int
}

func (b *IntBag) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, v := range b.items {
			if !yield(v) {
				return
			}
		}
	}
}

func (b *IntBag) Add(v int) {
	b.items = append(b.items, v)
}

type IntView struct {
	items []int
}

func (v IntView) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, item := range v.items {
			if !yield(item) {
				return
			}
		}
	}
}

type Confused struct{}

func (Confused) All() iter.Seq[int]       { return func(func(int) bool) {} }
func (Confused) Values() iter.Seq[string] { return func(func(string) bool) {} }

type IntSource interface {
	All() iter.Seq[int]
}

type Roster []string

func (Roster) CollectionDataContract() CollectionInfo {
	return CollectionInfo{Name: "Roster", Namespace: "urn:team", ItemName: "Player"}
}

type Scores map[string]int

func (Scores) CollectionDataContract() CollectionInfo {
	return CollectionInfo{ItemName: "Entry", KeyName: "Player", ValueName: "Points"}
}

type Pair[K, V any] struct {
	First  K
	Second V
}

type Box[T any] struct {
	Item T
}

func (Box[T]) DataContract() ContractInfo {
	return ContractInfo{Name: "BoxOf{0}Thing"}
}

type Mate struct {
	Name string
}

func (Mate) DataContract() ContractInfo {
	return ContractInfo{Name: "Spouse", Namespace: "urn:people"}
}

// Link 与 Chain 互相引用，Chain 同时是 Link 的类型参数。
type Link[T any] struct {
	Value T
}

type Chain struct {
	Next *Link[Chain]
}

type BadName struct{}

func (BadName) DataContract() ContractInfo {
	return ContractInfo{Name: "not valid"}
}

type BadNamespace struct{}

func (BadNamespace) DataContract() ContractInfo {
	return ContractInfo{Namespace: "relative/path"}
}

type PersonV1 struct {
	Name string `dc:"Name"`
}

func (PersonV1) DataContract() ContractInfo {
	return ContractInfo{Name: "Person", Namespace: "urn:people"}
}

type PersonV2 struct {
	Name string `dc:"Name"`
	Age  int    `dc:"Age"`
}

func (PersonV2) DataContract() ContractInfo {
	return ContractInfo{Name: "Person", Namespace: "urn:people"}
}

type Holder struct {
	Good Address
	Bad  chan int
}

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Drawing struct {
	Shapes []Shape
}

func (Drawing) DataContract() ContractInfo {
	return ContractInfo{
		Name:       "Drawing",
		Namespace:  "urn:art",
		KnownTypes: []reflect.Type{reflect.TypeFor[Square]()},
	}
}

type ContractSuite struct {
	suite.Suite
	reg *Registry
}

func (s *ContractSuite) SetupTest() {
	s.reg = NewRegistry()
}

func (s *ContractSuite) get(t reflect.Type) Contract {
	c, err := s.reg.GetContract(t)
	s.Require().NoError(err)
	return c
}

func (s *ContractSuite) TestPrimitives() {
	cases := []struct {
		typ  reflect.Type
		name string
		ns   string
	}{
		{reflect.TypeFor[int](), "long", xmlwire.SchemaNamespace},
		{reflect.TypeFor[int32](), "int", xmlwire.SchemaNamespace},
		{reflect.TypeFor[uint8](), "unsignedByte", xmlwire.SchemaNamespace},
		{reflect.TypeFor[string](), "string", xmlwire.SchemaNamespace},
		{reflect.TypeFor[[]byte](), "base64Binary", xmlwire.SchemaNamespace},
		{reflect.TypeFor[time.Time](), "dateTime", xmlwire.SchemaNamespace},
		{reflect.TypeFor[time.Duration](), "duration", xmlwire.SerializationNamespace},
		{reflect.TypeFor[uuid.UUID](), "guid", xmlwire.SerializationNamespace},
		{reflect.TypeFor[xml.Name](), "QName", xmlwire.SchemaNamespace},
		{reflect.TypeFor[any](), "anyType", xmlwire.SchemaNamespace},
		{reflect.TypeFor[*int](), "long", xmlwire.SchemaNamespace},
	}
	for _, tc := range cases {
		c := s.get(tc.typ)
		s.Equal(KindPrimitive, c.Kind(), tc.typ.String())
		s.Equal(StableName{Name: tc.name, Namespace: tc.ns}, c.StableName(), tc.typ.String())
	}

	s.True(AnyType().IsAnyType())
	s.False(AnyType().IsValueType())
	s.Equal(StableName{Name: "long", Namespace: xmlwire.SerializationNamespace}, s.get(reflect.TypeFor[int64]()).TopLevelElement())

	long, ok := LookupPrimitiveName(StableName{Name: "long", Namespace: xmlwire.SchemaNamespace})
	s.True(ok)
	s.Equal(reflect.TypeFor[int64](), long.Type())

	c := s.get(reflect.TypeFor[Celsius]()).(*PrimitiveContract)
	s.Equal("double", c.StableName().Name)
	s.Equal(reflect.TypeFor[Celsius](), c.Type())
	text, err := c.Encode(reflect.ValueOf(Celsius(21.5)))
	s.NoError(err)
	s.Equal("21.5", text)
	v, err := c.Decode("-3.25")
	s.NoError(err)
	s.Equal(Celsius(-3.25), v.Interface())

	stringer := s.get(reflect.TypeFor[Shape]())
	s.True(stringer.(*PrimitiveContract).IsAnyType())
	s.Equal(reflect.TypeFor[Shape](), stringer.Type())
}

func (s *ContractSuite) TestPrimitiveCodecs() {
	roundTrip := func(v any, want string) {
		c := s.get(reflect.TypeOf(v)).(*PrimitiveContract)
		text, err := c.Encode(reflect.ValueOf(v))
		s.Require().NoError(err)
		s.Equal(want, text)
		back, err := c.Decode(text)
		s.Require().NoError(err)
		s.Equal(v, back.Interface())
	}
	roundTrip(true, "true")
	roundTrip(int8(-7), "-7")
	roundTrip(uint64(18446744073709551615), "18446744073709551615")
	roundTrip(float32(1.5), "1.5")
	roundTrip("a<b", "a<b")
	roundTrip([]byte("hi"), "aGk=")
	roundTrip(90*time.Minute+1500*time.Millisecond, "PT1H30M1.5S")
	roundTrip(uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"), "0f8fad5b-d9cb-469f-a165-70867728950e")
	roundTrip(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), "2024-05-06T07:08:09Z")

	c := s.get(reflect.TypeFor[int8]()).(*PrimitiveContract)
	_, err := c.Decode("300")
	s.ErrorIs(err, merr.ErrWireInvalidValue)
	_, err = c.Decode("abc")
	s.ErrorIs(err, merr.ErrWireFormat)

	d, err := ParseDuration("P1DT2H")
	s.NoError(err)
	s.Equal(26*time.Hour, d)
	s.Equal("-PT5S", FormatDuration(-5*time.Second))
	s.Equal("PT0S", FormatDuration(0))
	_, err = ParseDuration("P1Y")
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *ContractSuite) TestEnum() {
	c := s.get(reflect.TypeFor[Color]()).(*EnumContract)
	s.Equal(KindEnum, c.Kind())
	s.Equal(StableName{Name: "Color", Namespace: testNamespace}, c.StableName())
	s.True(c.IsFlags())
	s.Len(c.Members(), 4)

	text, err := c.Encode(reflect.ValueOf(Color(2)))
	s.NoError(err)
	s.Equal("Green", text)
	text, err = c.Encode(reflect.ValueOf(Color(5)))
	s.NoError(err)
	s.Equal("Red Blue", text)
	_, err = c.Encode(reflect.ValueOf(Color(8)))
	s.ErrorIs(err, merr.ErrWireInvalidValue)

	v, err := c.Decode(" Red  Green ")
	s.NoError(err)
	s.Equal(Color(3), v.Interface())
	_, err = c.Decode("Purple")
	s.ErrorIs(err, merr.ErrWireInvalidValue)

	_, err = s.reg.GetContract(reflect.TypeFor[Suit]())
	s.ErrorIs(err, merr.ErrContractDuplicateMember)
	s.ErrorIs(err, merr.ErrContractDefinition)
}

func (s *ContractSuite) TestClassMembers() {
	c := s.get(reflect.TypeFor[Person]()).(*ClassContract)
	s.Equal(KindClass, c.Kind())
	s.Equal(StableName{Name: "Person", Namespace: testNamespace}, c.StableName())
	s.True(c.IsValueType())
	s.Nil(c.Base())
	s.False(c.HasExtensionData())

	names := make([]string, 0)
	for _, m := range c.AllMembers() {
		names = append(names, m.Name)
		s.Equal(testNamespace, m.Namespace)
	}
	s.Equal([]string{"Age", "Home", "Name", "Tags"}, names)

	byName := make(map[string]*Member)
	members := c.Members()
	for i := range members {
		byName[members[i].Name] = &members[i]
	}
	s.True(byName["Name"].Required)
	s.False(byName["Age"].EmitDefault)
	s.True(byName["Tags"].GetOnly)
	s.Equal(KindCollection, byName["Tags"].Contract().Kind())
	s.Equal(reflect.TypeFor[*Address](), byName["Home"].Type)
	s.Equal(reflect.TypeFor[Address](), byName["Home"].Contract().Type())

	addr := s.get(reflect.TypeFor[Address]()).(*ClassContract)
	s.Equal("Street", addr.Members()[0].Name)
	s.Equal("City", addr.Members()[1].Name)
	s.Equal(1, addr.Members()[1].Order)
}

func (s *ContractSuite) TestOptIn() {
	c := s.get(reflect.TypeFor[Account]()).(*ClassContract)
	s.Equal(StableName{Name: "Acct", Namespace: "urn:bank"}, c.StableName())
	s.Len(c.Members(), 2)
	s.Equal("Id", c.Members()[0].Name)
	s.Equal("urn:bank", c.Members()[0].Namespace)
	s.Equal("Owner", c.Members()[1].Name)
}

func (s *ContractSuite) TestInheritance() {
	c := s.get(reflect.TypeFor[Dog]()).(*ClassContract)
	s.Require().NotNil(c.Base())
	s.Equal(reflect.TypeFor[Animal](), c.Base().Type())
	s.Equal([]int{0, 2}, c.ExtensionDataIndex())

	all := c.AllMembers()
	s.Require().Len(all, 4)
	s.Equal("Legs", all[0].Name)
	s.Equal([]int{0, 1}, all[0].Index)
	s.True(all[0].Conflict)
	s.Equal("Name", all[1].Name)
	s.False(all[1].Conflict)
	s.Equal("Breed", all[2].Name)
	s.Equal("Legs", all[3].Name)
	s.True(all[3].Conflict)

	// 基类自身的展开结果不受派生类影响。
	base := c.Base()
	s.False(base.AllMembers()[0].Conflict)
	s.Equal([]int{1}, base.AllMembers()[0].Index)
}

func (s *ContractSuite) TestClassErrors() {
	cases := []struct {
		typ reflect.Type
		err error
	}{
		{reflect.TypeFor[TwoBases](), merr.ErrContractMultipleBaseType},
		{reflect.TypeFor[PointerBase](), merr.ErrContractInvalidMember},
		{reflect.TypeFor[DuplicateNames](), merr.ErrContractDuplicateMember},
		{reflect.TypeFor[TaggedHidden](), merr.ErrContractInvalidMember},
		{reflect.TypeFor[ScalarGetOnly](), merr.ErrContractInvalidMember},
		{reflect.TypeFor[BadName](), merr.ErrContractInvalidName},
		{reflect.TypeFor[BadNamespace](), merr.ErrContractInvalidName},
		{reflect.TypeFor[WriteOnlyLegacy](), merr.ErrContractMissingCtor},
		{reflect.TypeFor[Confused](), merr.ErrContractAmbiguousShape},
	}
	for _, tc := range cases {
		_, err := s.reg.GetContract(tc.typ)
		s.ErrorIs(err, tc.err, tc.typ.String())
		s.ErrorIs(err, merr.ErrContractDefinition, tc.typ.String())
	}
}

func (s *ContractSuite) TestUnsupported() {
	for _, t := range []reflect.Type{
		reflect.TypeFor[chan int](),
		reflect.TypeFor[func()](),
		reflect.TypeFor[complex128](),
		reflect.TypeFor[**int](),
		reflect.TypeFor[struct{ A int }](),
	} {
		_, err := s.reg.GetContract(t)
		s.ErrorIs(err, merr.ErrUnsupportedType, t.String())
	}
}

func (s *ContractSuite) TestRecursiveType() {
	c := s.get(reflect.TypeFor[Node]()).(*ClassContract)
	var next, children Member
	for _, m := range c.Members() {
		switch m.Name {
		case "Next":
			next = m
		case "Children":
			children = m
		}
	}
	s.Same(c, next.Contract())
	s.Same(c, children.Contract().(*CollectionContract).Item())
}

func (s *ContractSuite) TestCollections() {
	list := s.get(reflect.TypeFor[[]int]()).(*CollectionContract)
	s.Equal(ShapeGenericList, list.Shape())
	s.Equal(StableName{Name: "ArrayOflong", Namespace: xmlwire.ArraysNamespace}, list.StableName())
	s.Equal("long", list.ItemName())
	s.Equal(-1, list.Length())
	s.True(list.IsBuiltin())
	s.False(list.IsReadOnly())

	arr := s.get(reflect.TypeFor[[3]string]()).(*CollectionContract)
	s.Equal(ShapeArray, arr.Shape())
	s.Equal(3, arr.Length())

	people := s.get(reflect.TypeFor[[]Person]()).(*CollectionContract)
	s.Equal(StableName{Name: "ArrayOfPerson", Namespace: testNamespace}, people.StableName())

	dict := s.get(reflect.TypeFor[map[string]int]()).(*CollectionContract)
	s.Equal(ShapeGenericDictionary, dict.Shape())
	s.False(dict.IsValueType())
	s.Equal(StableName{Name: "ArrayOfKeyValueOfstringlong", Namespace: xmlwire.ArraysNamespace}, dict.StableName())
	s.Equal("KeyValueOfstringlong", dict.ItemName())
	kv := dict.KeyValue()
	s.Require().NotNil(kv)
	s.True(kv.IsKeyValue())
	s.Equal("Key", kv.AllMembers()[0].Name)
	s.Equal("Value", kv.AllMembers()[1].Name)
	s.Equal(reflect.TypeFor[string](), kv.Type().Field(0).Type)

	anyDict := s.get(reflect.TypeFor[map[any]any]()).(*CollectionContract)
	s.Equal(ShapeDictionary, anyDict.Shape())

	scores := s.get(reflect.TypeFor[Scores]()).(*CollectionContract)
	s.Equal("Entry", scores.ItemName())
	s.Equal("ArrayOfEntry", scores.StableName().Name)
	s.Equal("Player", scores.KeyValue().AllMembers()[0].Name)
	s.Equal("Points", scores.KeyValue().AllMembers()[1].Name)

	roster := s.get(reflect.TypeFor[Roster]()).(*CollectionContract)
	s.Equal(StableName{Name: "Roster", Namespace: "urn:team"}, roster.StableName())
	s.Equal("Player", roster.ItemName())
}

func (s *ContractSuite) TestMethodCollections() {
	bag := s.get(reflect.TypeFor[IntBag]()).(*CollectionContract)
	s.Equal(ShapeGenericCollection, bag.Shape())
	s.Equal("All", bag.EnumerateMethod())
	s.Equal("Add", bag.AddMethod())
	s.False(bag.IsReadOnly())
	s.Equal(StableName{Name: "ArrayOflong", Namespace: xmlwire.ArraysNamespace}, bag.StableName())

	view := s.get(reflect.TypeFor[IntView]()).(*CollectionContract)
	s.Equal(ShapeGenericEnumerable, view.Shape())
	s.True(view.IsReadOnly())
	s.NotEmpty(view.ReadOnlyMessage())

	source := s.get(reflect.TypeFor[IntSource]()).(*CollectionContract)
	s.True(source.IsReadOnly())
	s.Contains(source.ReadOnlyMessage(), "interface")
}

func (s *ContractSuite) TestLegacyAndOpaque() {
	legacy := s.get(reflect.TypeFor[Money]())
	s.Equal(KindLegacy, legacy.Kind())
	s.Equal(StableName{Name: "Money", Namespace: testNamespace}, legacy.StableName())

	opaque := s.get(reflect.TypeFor[Blob]())
	s.Equal(KindXMLOpaque, opaque.Kind())
}

func (s *ContractSuite) TestGenericNames() {
	c := s.get(reflect.TypeFor[Pair[int, string]]())
	s.Equal("PairOflongstring", c.StableName().Name)

	withUserType := s.get(reflect.TypeFor[Pair[int, Person]]())
	s.True(len(withUserType.StableName().Name) > len("PairOflongPerson"))
	s.Equal("PairOflongPerson", withUserType.StableName().Name[:len("PairOflongPerson")])

	other := s.get(reflect.TypeFor[Pair[int, Address]]())
	s.NotEqual(withUserType.StableName(), other.StableName())

	box := s.get(reflect.TypeFor[Box[[]int]]())
	s.Equal("BoxOfArrayOflongThing", box.StableName().Name)
}

func (s *ContractSuite) TestGenericNamesFollowArgumentContracts() {
	long := StableName{Name: "long", Namespace: xmlwire.SchemaNamespace}
	spouse := StableName{Name: "Spouse", Namespace: "urn:people"}

	c := s.get(reflect.TypeFor[Pair[int, Mate]]())
	s.Equal("PairOflongSpouse"+namespaceDigest([]StableName{long, spouse}), c.StableName().Name)
	s.NotEqual(s.get(reflect.TypeFor[Pair[int, Address]]()).StableName(), c.StableName())

	// 参数类型名不同但契约相同，实例的稳定名一致。
	v1, err := ContractFor[Pair[int, PersonV1]](NewRegistry())
	s.Require().NoError(err)
	v2, err := ContractFor[Pair[int, PersonV2]](NewRegistry())
	s.Require().NoError(err)
	s.Equal(v1.StableName(), v2.StableName())
	s.Contains(v1.StableName().Name, "PairOflongPerson")

	list := s.get(reflect.TypeFor[Box[[]Mate]]())
	s.Equal("BoxOfArrayOfSpouseThing", list.StableName().Name[:len("BoxOfArrayOfSpouseThing")])
}

func (s *ContractSuite) TestGenericNameWithCyclicArgument() {
	link := s.get(reflect.TypeFor[Link[Chain]]()).(*ClassContract)
	chain := s.get(reflect.TypeFor[Chain]()).(*ClassContract)
	s.Equal("LinkOfChain"+namespaceDigest([]StableName{chain.StableName()}), link.StableName().Name)
	s.Same(link, chain.Members()[0].Contract())
	s.Same(chain, link.Members()[0].Contract())
}

func (s *ContractSuite) TestKnownTypes() {
	c := s.get(reflect.TypeFor[Drawing]())
	square := s.get(reflect.TypeFor[Square]())
	s.True(c.KnownTypes().Contains(square))
	found, ok := c.KnownTypes().Lookup(square.StableName())
	s.True(ok)
	s.Same(square, found)

	person := reflect.TypeFor[Person]()
	_, ok = s.reg.LookupKnown(StableName{Name: "Person", Namespace: testNamespace})
	s.False(ok)
	s.NoError(s.reg.RegisterKnownType(person))
	known, ok := s.reg.LookupKnown(StableName{Name: "Person", Namespace: testNamespace})
	s.True(ok)
	s.Equal(person, known.Type())

	s.get(reflect.TypeFor[[]Person]())
	coll, ok := s.reg.LookupKnown(StableName{Name: "ArrayOfPerson", Namespace: testNamespace})
	s.True(ok)
	s.Equal(reflect.TypeFor[[]Person](), coll.Type())

	long, ok := s.reg.LookupKnown(StableName{Name: "long", Namespace: xmlwire.SchemaNamespace})
	s.True(ok)
	s.Equal(reflect.TypeFor[int64](), long.Type())

	s.True(s.reg.IsKnown(s.get(reflect.TypeFor[map[string]int]())))
	s.False(s.reg.IsKnown(s.get(reflect.TypeFor[[]Address]())))
}

func (s *ContractSuite) TestDuplicateStableName() {
	v1 := s.get(reflect.TypeFor[PersonV1]())
	_, err := s.reg.GetContract(reflect.TypeFor[PersonV2]())
	s.ErrorIs(err, merr.ErrContractDuplicateName)

	found, ok := s.reg.LookupName(StableName{Name: "Person", Namespace: "urn:people"})
	s.True(ok)
	s.Same(v1, found)

	// 不同注册表之间互不影响。
	other := NewRegistry()
	_, err = other.GetContract(reflect.TypeFor[PersonV2]())
	s.NoError(err)
}

func (s *ContractSuite) TestFailedSessionPublishesNothing() {
	_, err := s.reg.GetContract(reflect.TypeFor[Holder]())
	s.ErrorIs(err, merr.ErrUnsupportedType)
	s.Equal(0, s.reg.Len())

	_, err = s.reg.GetContract(reflect.TypeFor[Holder]())
	s.ErrorIs(err, merr.ErrUnsupportedType)

	s.get(reflect.TypeFor[Address]())
	s.Equal(1, s.reg.Len())
}

func (s *ContractSuite) TestConcurrentDerivation() {
	const workers = 16
	results := make([]Contract, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.reg.GetContract(reflect.TypeFor[Dog]())
			assert.NoError(s.T(), err)
			results[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range results {
		s.Same(results[0], c)
	}

	c, err := ContractFor[*Dog](s.reg)
	s.NoError(err)
	s.Same(results[0], c)
}

func TestContract(t *testing.T) {
	suite.Run(t, new(ContractSuite))
}

func TestSerializationInfo(t *testing.T) {
	info := NewSerializationInfo(reflect.TypeFor[Money]())
	require.NoError(t, info.AddValue("amount", int64(5)))
	require.NoError(t, info.AddValue("count", int32(3)))
	assert.ErrorIs(t, info.AddValue("amount", int64(6)), merr.ErrContractDuplicateMember)
	assert.ErrorIs(t, info.AddValue("", 1), merr.ErrParameterInvalid)
	assert.Equal(t, 2, info.Len())

	count, err := InfoValue[int](info, "count")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = InfoValue[string](info, "amount")
	assert.ErrorIs(t, err, merr.ErrWireInvalidValue)
	_, err = InfoValue[string](info, "missing")
	assert.ErrorIs(t, err, merr.ErrWireRequiredMissing)

	var keys []string
	for k := range info.All() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"amount", "count"}, keys)

	info.SetType(reflect.TypeFor[*Money]())
	assert.Equal(t, reflect.TypeFor[Money](), info.FactoryType())
}
