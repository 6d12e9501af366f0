package serialization

import (
	"bytes"
	"iter"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

const testNamespace = contract.DefaultNamespacePrefix + "github.com/lk2023060901/zeus-datacontract/pkg/serialization"

type Address struct {
	Street string
	City   string
}

type Person struct {
	Name string `dc:",required"`
	Age  int    `dc:",omitempty"`
	Home *Address
	Tags []string
}

type Pair struct {
	A *Address
	B *Address
}

type Node struct {
	Name string
	Next *Node
}

type Bag struct {
	Items []int
}

type Ledger struct {
	Balances map[string]int
	Window   [3]int
}

// Basket 的 getonly 成员在读取时合并进 OnDeserializing 准备好的集合。
type Basket struct {
	Items  []string       `dc:",getonly"`
	Counts map[string]int `dc:",getonly"`
}

func (b *Basket) OnDeserializing() error {
	b.Counts = map[string]int{"seed": 1}
	return nil
}

type Crate struct {
	Counts map[string]int `dc:",getonly"`
}

// 同名契约的两个版本，分别放在独立的注册表中。
type PersonV1 struct {
	Age  int    `dc:"Age"`
	Name string `dc:"Name"`
	Ext  *contract.ExtensionData
}

func (PersonV1) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Person", Namespace: "urn:people"}
}

type PersonV2 struct {
	Age    int      `dc:"Age"`
	Middle string   `dc:"Middle"`
	Name   string   `dc:"Name"`
	Spouse *Partner `dc:"Spouse"`
}

func (PersonV2) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Person", Namespace: "urn:people"}
}

type Partner struct {
	Name string `dc:"Name"`
}

func (Partner) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Partner", Namespace: "urn:people"}
}

// Household 的两个版本：新版本多出 Mate，Zed 可能引用与 Mate 相同的对象。
type HouseholdV1 struct {
	Zed *Partner `dc:"Zed"`
	Ext *contract.ExtensionData
}

func (HouseholdV1) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Household", Namespace: "urn:people"}
}

type HouseholdV2 struct {
	Mate *Partner `dc:"Mate"`
	Zed  *Partner `dc:"Zed"`
}

func (HouseholdV2) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Household", Namespace: "urn:people"}
}

type Ticket struct {
	Code string `dc:"Code,required,omitempty"`
	Note string `dc:"Note"`
}

func (Ticket) DataContract() contract.ContractInfo {
	return contract.ContractInfo{Name: "Ticket", Namespace: "urn:tickets"}
}

type Figure interface {
	Area() float64
}

type Circle struct {
	R float64
}

func (c Circle) Area() float64 { return 3 * c.R * c.R }

type Square struct {
	S float64
}

func (s Square) Area() float64 { return s.S * s.S }

type Drawing struct {
	Figures []Figure `dc:"Figures"`
}

func (Drawing) DataContract() contract.ContractInfo {
	return contract.ContractInfo{
		Name:       "Drawing",
		Namespace:  "urn:draw",
		KnownTypes: []reflect.Type{reflect.TypeFor[Circle](), reflect.TypeFor[Square]()},
	}
}

type Sketch struct {
	Figures []Figure
}

type Color int

const (
	Red Color = iota
	Green
	Blue
)

func (Color) EnumDescription() contract.EnumInfo {
	return contract.EnumInfo{Members: []contract.EnumMember{
		{Name: "Red", Value: int64(Red)},
		{Name: "Green", Value: int64(Green)},
		{Name: "Blue", Value: int64(Blue)},
	}}
}

type Canvas struct {
	Fill   Color
	Origin Point
}

// Point 以属性形式自行读写。
type Point struct {
	X, Y int
}

func (p *Point) WriteXML(w *xmlwire.Writer) error {
	w.WriteAttribute("x", strconv.Itoa(p.X))
	w.WriteAttribute("y", strconv.Itoa(p.Y))
	return nil
}

func (p *Point) ReadXML(r *xmlwire.Reader) error {
	var err error
	x, _ := r.GetAttribute("x", "")
	y, _ := r.GetAttribute("y", "")
	if p.X, err = strconv.Atoi(x); err != nil {
		return err
	}
	if p.Y, err = strconv.Atoi(y); err != nil {
		return err
	}
	return r.Skip()
}

type Money struct {
	Amount   int64
	Currency string
}

func (m *Money) GetObjectData(info *contract.SerializationInfo) error {
	info.SetType(reflect.TypeFor[moneyProxy]())
	if err := info.AddValue("amount", m.Amount); err != nil {
		return err
	}
	return info.AddValue("currency", m.Currency)
}

func (m *Money) SetObjectData(info *contract.SerializationInfo) error {
	var err error
	if m.Amount, err = contract.InfoValue[int64](info, "amount"); err != nil {
		return err
	}
	m.Currency, err = contract.InfoValue[string](info, "currency")
	return err
}

// moneyProxy 在反序列化时代替 Money 构造，再通过 GetRealObject 换回 Money。
type moneyProxy struct {
	amount   int64
	currency string
}

func (p *moneyProxy) GetObjectData(info *contract.SerializationInfo) error {
	return merr.WrapErrOperationNotSupported("moneyProxy", "GetObjectData")
}

func (p *moneyProxy) SetObjectData(info *contract.SerializationInfo) error {
	var err error
	if p.amount, err = contract.InfoValue[int64](info, "amount"); err != nil {
		return err
	}
	p.currency, err = contract.InfoValue[string](info, "currency")
	return err
}

func (p *moneyProxy) GetRealObject() (any, error) {
	return &Money{Amount: p.amount, Currency: strings.ToUpper(p.currency)}, nil
}

// Tally 只能枚举，不能添加元素。
type Tally struct {
	counts []int
}

func (t *Tally) Values() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, c := range t.counts {
			if !yield(c) {
				return
			}
		}
	}
}

type Scoreboard struct {
	Tally Tally
}

type SerializationSuite struct {
	suite.Suite
}

func (s *SerializationSuite) marshal(v any, opts *Options) []byte {
	data, err := Marshal(v, opts)
	s.Require().NoError(err)
	return data
}

func (s *SerializationSuite) TestRoundTrip() {
	in := Person{
		Name: "Ann",
		Age:  42,
		Home: &Address{Street: "1 Main St", City: "Springfield"},
		Tags: []string{"a", "b <&>"},
	}
	data := s.marshal(&in, nil)
	s.Contains(string(data), `<Person xmlns="`+testNamespace+`"`)
	s.Contains(string(data), `<Name>Ann</Name>`)
	s.Contains(string(data), `b &lt;&amp;&gt;`)

	var out Person
	s.Require().NoError(Unmarshal(data, &out, nil))
	s.Empty(cmp.Diff(in, out))
}

func (s *SerializationSuite) TestOmitEmptyAndNil() {
	data := string(s.marshal(Person{Name: "Bo"}, nil))
	s.NotContains(data, "<Age>")
	s.Contains(data, `<Home i:nil="true"/>`)

	var out Person
	s.Require().NoError(Unmarshal([]byte(data), &out, nil))
	s.Nil(out.Home)
	s.Nil(out.Tags)
	s.Zero(out.Age)
}

func (s *SerializationSuite) TestRootIsNil() {
	doc := `<Person xmlns="` + testNamespace + `" xmlns:i="` + xmlwire.InstanceNamespace + `" i:nil="true"/>`
	c, err := contract.ContractFor[Person](contract.Default())
	s.Require().NoError(err)
	out, err := Deserialize(strings.NewReader(doc), c, nil)
	s.NoError(err)
	s.Nil(out)
}

func (s *SerializationSuite) TestSharedReferences() {
	home := &Address{City: "Oslo"}
	in := Pair{A: home, B: home}

	plain := s.marshal(&in, nil)
	s.NotContains(string(plain), "z:Ref")
	var copied Pair
	s.Require().NoError(Unmarshal(plain, &copied, nil))
	s.NotSame(copied.A, copied.B)
	s.Equal(*copied.A, *copied.B)

	opts := &Options{PreserveReferences: true}
	preserved := s.marshal(&in, opts)
	s.Contains(string(preserved), `z:Id="i2"`)
	s.Contains(string(preserved), `z:Ref="i2"`)
	var shared Pair
	s.Require().NoError(Unmarshal(preserved, &shared, opts))
	s.Same(shared.A, shared.B)
	s.Equal("Oslo", shared.A.City)
}

func (s *SerializationSuite) TestCycle() {
	a := &Node{Name: "a"}
	b := &Node{Name: "b", Next: a}
	a.Next = b

	_, err := Marshal(a, nil)
	s.ErrorIs(err, merr.ErrReferenceCycle)

	opts := &Options{PreserveReferences: true}
	data := s.marshal(a, opts)
	c, err := contract.ContractFor[Node](contract.Default())
	s.Require().NoError(err)
	out, err := Deserialize(bytes.NewReader(data), c, opts)
	s.Require().NoError(err)
	root := out.(*Node)
	s.Equal("a", root.Name)
	s.Equal("b", root.Next.Name)
	s.Same(root, root.Next.Next)
}

func (s *SerializationSuite) TestDanglingReference() {
	doc := `<Node xmlns="` + testNamespace + `" xmlns:i="` + xmlwire.InstanceNamespace +
		`" xmlns:z="` + xmlwire.SerializationNamespace + `"><Name>a</Name><Next z:Ref="i9"/></Node>`
	var out Node
	err := Unmarshal([]byte(doc), &out, nil)
	s.ErrorIs(err, merr.ErrReferenceNotFound)
	s.ErrorIs(err, merr.ErrReference)
}

func (s *SerializationSuite) TestMaxDepth() {
	var head *Node
	for i := 0; i < 10; i++ {
		head = &Node{Name: strconv.Itoa(i), Next: head}
	}
	data := s.marshal(head, nil)

	var out Node
	s.ErrorIs(Unmarshal(data, &out, &Options{MaxDepth: 5}), merr.ErrQuotaMaxDepth)
	s.Require().NoError(Unmarshal(data, &out, nil))
	s.Equal("9", out.Name)
}

func (s *SerializationSuite) TestExtensionDataRoundTrip() {
	v1Opts := &Options{Registry: contract.NewRegistry()}
	v2Opts := &Options{Registry: contract.NewRegistry()}

	original := s.marshal(PersonV2{Age: 30, Middle: "Q", Name: "Ann", Spouse: &Partner{Name: "Bo"}}, v2Opts)

	var old PersonV1
	s.Require().NoError(Unmarshal(original, &old, v1Opts))
	s.Equal(30, old.Age)
	s.Equal("Ann", old.Name)
	s.Require().Equal(2, old.Ext.Len())
	s.Equal(1, old.Ext.Members[0].MemberIndex)
	s.IsType(&contract.PrimitiveNode{}, old.Ext.Members[0].Node)
	s.Equal(2, old.Ext.Members[1].MemberIndex)
	s.IsType(&contract.ClassNode{}, old.Ext.Members[1].Node)

	rewritten := s.marshal(old, v1Opts)
	s.Equal(string(original), string(rewritten))

	var back PersonV2
	s.Require().NoError(Unmarshal(rewritten, &back, v2Opts))
	s.Equal("Q", back.Middle)
	s.Equal("Bo", back.Spouse.Name)
}

func (s *SerializationSuite) TestExtensionDataKeepsWhitespace() {
	v1Opts := &Options{Registry: contract.NewRegistry()}
	original := string(s.marshal(PersonV2{Age: 3, Name: "Ann", Spouse: &Partner{Name: "Bo"}}, &Options{Registry: contract.NewRegistry()}))
	s.Require().Contains(original, "<Name>Bo</Name>")
	spaced := strings.Replace(original, "<Name>Bo</Name>", "\n  <Name>Bo</Name>\n", 1)

	var old PersonV1
	s.Require().NoError(Unmarshal([]byte(spaced), &old, v1Opts))
	s.Require().Equal(2, old.Ext.Len())
	s.IsType(&contract.ClassNode{}, old.Ext.Members[1].Node)
	s.Equal(spaced, string(s.marshal(old, v1Opts)))
}

func (s *SerializationSuite) TestReferenceIntoExtensionData() {
	v1Opts := &Options{Registry: contract.NewRegistry(), PreserveReferences: true}
	v2Opts := &Options{Registry: contract.NewRegistry(), PreserveReferences: true}
	shared := &Partner{Name: "Bo"}
	data := s.marshal(&HouseholdV2{Mate: shared, Zed: shared}, v2Opts)
	s.Require().Contains(string(data), "z:Ref=")

	var old HouseholdV1
	s.Require().NoError(Unmarshal(data, &old, v1Opts))
	s.Require().NotNil(old.Zed)
	s.Equal("Bo", old.Zed.Name)
	s.Equal(1, old.Ext.Len())

	var back HouseholdV2
	s.Require().NoError(Unmarshal(s.marshal(&old, v1Opts), &back, v2Opts))
	s.Equal("Bo", back.Mate.Name)
	s.Equal("Bo", back.Zed.Name)

	var same HouseholdV2
	s.Require().NoError(Unmarshal(data, &same, v2Opts))
	s.Same(same.Mate, same.Zed)
}

func (s *SerializationSuite) TestInvalidXMLCharacters() {
	for _, in := range []Address{{Street: "a\x01b"}, {City: "x\xffy"}} {
		_, err := Marshal(in, nil)
		s.ErrorIs(err, merr.ErrWireInvalidValue)
	}
	data := s.marshal(Address{Street: "tab\tok\u00e9"}, nil)
	var out Address
	s.Require().NoError(Unmarshal(data, &out, nil))
	s.Equal("tab\tok\u00e9", out.Street)
}

func (s *SerializationSuite) TestIgnoreExtensionData() {
	v1Opts := &Options{Registry: contract.NewRegistry(), IgnoreExtensionData: true}
	data := s.marshal(PersonV2{Age: 1, Middle: "M", Name: "N"}, &Options{Registry: contract.NewRegistry()})

	var old PersonV1
	s.Require().NoError(Unmarshal(data, &old, v1Opts))
	s.Nil(old.Ext)
	s.Equal("N", old.Name)
}

func (s *SerializationSuite) TestCollections() {
	in := Ledger{
		Balances: map[string]int{"b": 2, "a": 1, "c": 3},
		Window:   [3]int{7, 8, 9},
	}
	data := string(s.marshal(&in, nil))
	s.Less(strings.Index(data, ">a<"), strings.Index(data, ">b<"))
	s.Less(strings.Index(data, ">b<"), strings.Index(data, ">c<"))

	var out Ledger
	s.Require().NoError(Unmarshal([]byte(data), &out, nil))
	s.Empty(cmp.Diff(in, out))
}

func (s *SerializationSuite) TestRootCollection() {
	opts := &Options{PreserveReferences: true}
	data := string(s.marshal([]int{1, 2, 3}, opts))
	s.Contains(data, `z:Size="3"`)

	var out []int
	s.Require().NoError(Unmarshal([]byte(data), &out, opts))
	s.Equal([]int{1, 2, 3}, out)

	shrunk := strings.Replace(data, `z:Size="3"`, `z:Size="2"`, 1)
	s.ErrorIs(Unmarshal([]byte(shrunk), &out, opts), merr.ErrWireArrayExceededSize)

	broken := strings.Replace(data, `z:Size="3"`, `z:Size="x"`, 1)
	s.ErrorIs(Unmarshal([]byte(broken), &out, opts), merr.ErrWireInvalidValue)

	huge := strings.Replace(data, `z:Size="3"`, `z:Size="1000"`, 1)
	s.ErrorIs(Unmarshal([]byte(huge), &out, &Options{PreserveReferences: true, MaxItemsInGraph: 10}), merr.ErrQuotaArrayTooLarge)
}

func (s *SerializationSuite) TestGetOnlyMembers() {
	data := s.marshal(Basket{Items: []string{"x", "y"}, Counts: map[string]int{"k": 5}}, nil)

	var out Basket
	s.Require().NoError(Unmarshal(data, &out, nil))
	s.Equal([]string{"x", "y"}, out.Items)
	s.Equal(map[string]int{"seed": 1, "k": 5}, out.Counts)

	crate := s.marshal(Crate{Counts: map[string]int{"k": 1}}, nil)
	var c Crate
	s.ErrorIs(Unmarshal(crate, &c, nil), merr.ErrWireGetOnlyCollectionNil)
}

func (s *SerializationSuite) TestRequiredMembers() {
	_, err := Marshal(Ticket{Note: "n"}, nil)
	s.ErrorIs(err, merr.ErrWireRequiredNotEmitted)

	data := s.marshal(Ticket{Code: "c1", Note: "n"}, nil)
	var out Ticket
	s.Require().NoError(Unmarshal(data, &out, nil))
	s.Equal("c1", out.Code)

	doc := `<Ticket xmlns="urn:tickets"><Note>n</Note></Ticket>`
	err = Unmarshal([]byte(doc), &out, nil)
	s.ErrorIs(err, merr.ErrWireRequiredMissing)
	s.ErrorIs(err, merr.ErrWireFormat)

	s.ErrorIs(Unmarshal([]byte(`<Ticket xmlns="urn:tickets"/>`), &out, nil), merr.ErrWireRequiredMissing)
}

func (s *SerializationSuite) TestItemQuota() {
	bag := Bag{Items: make([]int, 99)}
	opts := &Options{MaxItemsInGraph: 100}
	data := s.marshal(bag, opts)

	var out Bag
	s.Require().NoError(Unmarshal(data, &out, opts))
	s.Len(out.Items, 99)

	bag.Items = append(bag.Items, 1)
	_, err := Marshal(bag, opts)
	s.ErrorIs(err, merr.ErrQuotaMaxItems)

	over := s.marshal(bag, nil)
	s.ErrorIs(Unmarshal(over, &out, opts), merr.ErrQuotaMaxItems)
}

func (s *SerializationSuite) TestRootListQuota() {
	opts := &Options{MaxItemsInGraph: 100}
	data := s.marshal(make([]int, 100), opts)

	var out []int
	s.Require().NoError(Unmarshal(data, &out, opts))
	s.Len(out, 100)

	_, err := Marshal(make([]int, 101), opts)
	s.ErrorIs(err, merr.ErrQuotaMaxItems)
	over := s.marshal(make([]int, 101), nil)
	s.ErrorIs(Unmarshal(over, &out, opts), merr.ErrQuotaMaxItems)
}

func (s *SerializationSuite) TestKnownTypes() {
	in := Drawing{Figures: []Figure{Circle{R: 1}, Square{S: 2}, nil}}
	data := string(s.marshal(in, nil))
	s.Contains(data, `:Circle"`)
	s.Contains(data, `i:nil="true"`)

	var out Drawing
	s.Require().NoError(Unmarshal([]byte(data), &out, nil))
	s.Empty(cmp.Diff([]Figure{&Circle{R: 1}, &Square{S: 2}, nil}, out.Figures))
}

func (s *SerializationSuite) TestUnknownType() {
	in := Sketch{Figures: []Figure{Circle{R: 2}}}
	_, err := Marshal(in, nil)
	s.ErrorIs(err, merr.ErrWireUnknownType)

	opts := &Options{AdditionalKnownTypes: []reflect.Type{reflect.TypeFor[Circle]()}}
	data := s.marshal(in, opts)

	var out Sketch
	s.ErrorIs(Unmarshal(data, &out, nil), merr.ErrWireUnknownType)
	s.Require().NoError(Unmarshal(data, &out, opts))
	s.Equal(12.0, out.Figures[0].Area())
}

func (s *SerializationSuite) TestEnumAndXMLOpaque() {
	in := Canvas{Fill: Green, Origin: Point{X: 3, Y: -4}}
	data := string(s.marshal(in, nil))
	s.Contains(data, `<Fill>Green</Fill>`)
	s.Contains(data, `<Origin x="3" y="-4"/>`)

	var out Canvas
	s.Require().NoError(Unmarshal([]byte(data), &out, nil))
	s.Equal(in, out)

	bad := strings.Replace(data, "Green", "Purple", 1)
	s.ErrorIs(Unmarshal([]byte(bad), &out, nil), merr.ErrWireInvalidValue)
}

func (s *SerializationSuite) TestLegacyFactoryType() {
	reg := contract.NewRegistry()
	s.Require().NoError(reg.RegisterKnownType(reflect.TypeFor[moneyProxy]()))
	opts := &Options{Registry: reg}

	data := string(s.marshal(&Money{Amount: 125, Currency: "eur"}, opts))
	s.Contains(data, `:FactoryType="`)
	s.Contains(data, `<amount`)

	c, err := contract.ContractFor[Money](reg)
	s.Require().NoError(err)
	out, err := Deserialize(strings.NewReader(data), c, opts)
	s.Require().NoError(err)
	s.Equal(&Money{Amount: 125, Currency: "EUR"}, out)

	// 工厂类型不在已知类型中时无法解析。
	_, err = Deserialize(strings.NewReader(data), c, &Options{Registry: contract.NewRegistry()})
	s.ErrorIs(err, merr.ErrWireUnknownType)
}

func (s *SerializationSuite) TestReadOnlyCollection() {
	data := s.marshal(Scoreboard{Tally: Tally{counts: []int{1, 2}}}, nil)
	s.Contains(string(data), "<Tally>")

	var out Scoreboard
	s.ErrorIs(Unmarshal(data, &out, nil), merr.ErrWireReadOnlyCollection)
}

func (s *SerializationSuite) TestRootName() {
	opts := &Options{RootName: "Human", RootNamespace: "urn:x"}
	data := s.marshal(Person{Name: "Ann"}, opts)
	s.True(strings.HasPrefix(string(data), `<Human xmlns="urn:x"`))

	var out Person
	s.ErrorIs(Unmarshal(data, &out, nil), merr.ErrWireUnexpectedNode)
	s.Require().NoError(Unmarshal(data, &out, opts))
	s.Equal("Ann", out.Name)
}

func (s *SerializationSuite) TestTrailingContent() {
	data := string(s.marshal(Bag{}, nil))
	var out Bag
	s.ErrorIs(Unmarshal([]byte(data+data), &out, nil), merr.ErrWireFormat)
}

func (s *SerializationSuite) TestInvalidArguments() {
	s.ErrorIs(Unmarshal([]byte("<x/>"), Person{}, nil), merr.ErrParameterInvalid)

	var p *Person
	s.ErrorIs(Unmarshal([]byte("<x/>"), p, nil), merr.ErrParameterInvalid)

	_, err := Deserialize(strings.NewReader("<x/>"), nil, nil)
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = Marshal(Person{}, &Options{MaxDepth: -1})
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = Marshal(Person{}, &Options{RootNamespace: "urn:x"})
	s.ErrorIs(err, merr.ErrParameterInvalid)

	_, err = Marshal(Person{}, &Options{MaxItemsInGraph: -1, MaxDepth: -2})
	s.ErrorIs(err, merr.ErrParameterInvalid)
	s.Contains(err.Error(), "max items in graph must not be negative, got -1")
	s.Contains(err.Error(), "max depth must not be negative, got -2")

	err = Unmarshal([]byte("<x/>"), p, nil)
	s.Contains(err.Error(), "expected=non-nil pointer")
	s.Contains(err.Error(), "actual=nil *serialization.Person")

	var out bytes.Buffer
	s.ErrorIs(Serialize(&out, nil, nil, nil), merr.ErrParameterInvalid)
	s.Zero(out.Len())
}

func (s *SerializationSuite) TestFailedSerializeWritesNothing() {
	var out bytes.Buffer
	err := Serialize(&out, Ticket{Note: "n"}, nil, nil)
	s.Error(err)
	s.Zero(out.Len())
}

func (s *SerializationSuite) TestDataContractSerializer() {
	ser, err := NewDataContractSerializer(reflect.TypeFor[Person](), &Options{PreserveReferences: true})
	s.Require().NoError(err)
	s.Equal("Person", ser.Contract().StableName().Name)

	in := Person{Name: "Cy", Home: &Address{City: "Rome"}}
	data, err := ser.Marshal(&in)
	s.Require().NoError(err)

	var out Person
	s.Require().NoError(ser.Unmarshal(data, &out))
	s.Empty(cmp.Diff(in, out))
	s.ErrorIs(ser.Unmarshal(data, out), merr.ErrParameterInvalid)

	var buf bytes.Buffer
	s.Require().NoError(ser.WriteObject(&buf, in))
	obj, err := ser.ReadObject(&buf)
	s.Require().NoError(err)
	s.Equal("Rome", obj.(*Person).Home.City)

	_, err = NewDataContractSerializer(reflect.TypeFor[Person](), &Options{
		AdditionalKnownTypes: []reflect.Type{reflect.TypeFor[func()]()},
	})
	s.ErrorIs(err, merr.ErrUnsupportedType)
}

func TestSerialization(t *testing.T) {
	suite.Run(t, new(SerializationSuite))
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serialization:\n  preserve-references: true\n  max-depth: 12\n"), 0o600))
	t.Setenv("ZEUS_DC_SERIALIZATION_MAX_ITEMS_IN_GRAPH", "50")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.True(t, opts.PreserveReferences)
	assert.Equal(t, 12, opts.MaxDepth)
	assert.Equal(t, 50, opts.MaxItemsInGraph)
	assert.False(t, opts.IgnoreExtensionData)
}

func TestLoadOptionsDefaults(t *testing.T) {
	opts, err := LoadOptions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestLoadOptionsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"serialization":{"max-depth":-1}}`), 0o600))
	_, err := LoadOptions(path)
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}
