package contract

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/metrics"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/typeutil"
	"github.com/lk2023060901/zeus-datacontract/pkg/xmlwire"
)

// Registry 缓存已推导的契约。
//
// 注册表只追加不删除：每个类型至多推导一次，并发请求同一类型时由 singleflight 合并。
// 一次推导会话新建的契约在会话成功后整体发布，失败不缓存，下次请求会重新推导。
type Registry struct {
	log.Binder

	mu     sync.RWMutex
	byType map[reflect.Type]Contract
	byName map[StableName]Contract
	// collections 记录同一稳定名下的集合契约，用于按名称解析已知元素的集合。
	collections map[StableName][]*CollectionContract

	known       *typeutil.ConcurrentSet[reflect.Type]
	knownByName map[StableName]Contract

	group singleflight.Group
}

var defaultRegistry = NewRegistry()

// Default 返回进程级共享的注册表。
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry 创建一个空的注册表。
func NewRegistry() *Registry {
	r := &Registry{
		byType:      make(map[reflect.Type]Contract),
		byName:      make(map[StableName]Contract),
		collections: make(map[StableName][]*CollectionContract),
		known:       typeutil.NewConcurrentSet[reflect.Type](),
		knownByName: make(map[StableName]Contract),
	}
	r.SetLogger(log.With(log.FieldModule("datacontract"), log.FieldComponent("registry")))
	return r
}

// GetContract 返回类型 t 的契约，必要时推导并发布。
func (r *Registry) GetContract(t reflect.Type) (Contract, error) {
	if t == nil {
		return nil, merr.WrapErrParameterInvalidMsg("type is nil")
	}
	key, err := normalizeType(t)
	if err != nil {
		return nil, err
	}
	if c, ok := r.lookup(key); ok {
		metrics.ContractLookups.WithLabelValues(metrics.HitLabel).Inc()
		return c, nil
	}
	metrics.ContractLookups.WithLabelValues(metrics.MissLabel).Inc()

	v, err, _ := r.group.Do(fmt.Sprintf("%p", key), func() (any, error) {
		// double check，前一个会话可能刚刚发布了该类型。
		if c, ok := r.lookup(key); ok {
			return c, nil
		}
		return r.derive(key)
	})
	if err != nil {
		return nil, err
	}
	return v.(Contract), nil
}

// MustGetContract 与 GetContract 相同，失败时 panic，用于包级变量初始化。
func (r *Registry) MustGetContract(t reflect.Type) Contract {
	c, err := r.GetContract(t)
	if err != nil {
		panic(err)
	}
	return c
}

// ContractFor 返回 T 的契约。
func ContractFor[T any](r *Registry) (Contract, error) {
	return r.GetContract(reflect.TypeFor[T]())
}

func (r *Registry) lookup(t reflect.Type) (Contract, bool) {
	if c, ok := lookupPrimitive(t); ok {
		return c, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[t]
	return c, ok
}

func (r *Registry) derive(t reflect.Type) (Contract, error) {
	start := time.Now()
	s := newSession(r)
	c, err := s.contractOf(t)
	if err != nil {
		metrics.ContractDerivations.WithLabelValues("unknown", metrics.FailLabel).Inc()
		r.Logger().Warn("failed to derive data contract",
			zap.Stringer("type", t),
			zap.Error(err))
		return nil, err
	}
	s.finalize()
	if err := r.publish(s); err != nil {
		metrics.ContractDerivations.WithLabelValues(c.Kind().String(), metrics.FailLabel).Inc()
		r.Logger().Warn("failed to publish data contracts",
			zap.Stringer("type", t),
			zap.Error(err))
		return nil, err
	}
	metrics.ContractDerivationLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	for _, built := range s.order {
		metrics.ContractDerivations.WithLabelValues(built.Kind().String(), metrics.SuccessLabel).Inc()
		r.Logger().Debug("data contract derived",
			log.FieldContract(built.Kind().String()),
			log.FieldStableName(built.StableName().Name, built.StableName().Namespace),
			zap.Stringer("type", built.Type()))
	}

	// 另一会话可能已经发布了同一类型，以注册表中的为准。
	if published, ok := r.lookup(t); ok {
		return published, nil
	}
	return c, nil
}

func namedKind(c Contract) bool {
	switch c.Kind() {
	case KindClass, KindEnum, KindLegacy, KindXMLOpaque:
		return true
	}
	return false
}

// publish 整体发布会话中的契约；任一稳定名冲突时一个也不发布。
func (r *Registry) publish(s *session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[StableName]Contract)
	for _, c := range s.order {
		if !namedKind(c) {
			continue
		}
		if _, ok := r.byType[c.Type()]; ok {
			continue
		}
		name := c.StableName()
		if existing, ok := r.byName[name]; ok && existing.Type() != c.Type() {
			return merr.WrapErrDuplicateStableName(name.String(), existing.Type(), c.Type())
		}
		if existing, ok := pending[name]; ok && existing.Type() != c.Type() {
			return merr.WrapErrDuplicateStableName(name.String(), existing.Type(), c.Type())
		}
		pending[name] = c
	}

	for _, c := range s.order {
		t := c.Type()
		if _, ok := r.byType[t]; ok {
			continue
		}
		r.byType[t] = c
		if namedKind(c) {
			r.byName[c.StableName()] = c
		}
		if cc, ok := c.(*CollectionContract); ok {
			r.collections[cc.name] = append(r.collections[cc.name], cc)
		}
	}
	return nil
}

// LookupName 按稳定名查找已发布的类、枚举、键值对序列化或 XML 自描述契约。
func (r *Registry) LookupName(name StableName) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// RegisterKnownType 将类型注册为全局已知类型，使其可以通过 i:type 被解析。
func (r *Registry) RegisterKnownType(t reflect.Type) error {
	c, err := r.GetContract(t)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.knownByName[c.StableName()]; ok && existing.Type() != c.Type() {
		return merr.WrapErrDuplicateStableName(c.StableName().String(), existing.Type(), c.Type())
	}
	r.knownByName[c.StableName()] = c
	r.known.Insert(c.Type())
	return nil
}

// IsKnown 判断契约能否在不借助调用方选项的情况下被解析：
// 内置标量、显式注册的类型以及元素已知的集合。
func (r *Registry) IsKnown(c Contract) bool {
	switch v := c.(type) {
	case *PrimitiveContract:
		return true
	case *CollectionContract:
		if v.IsDictionary() {
			return r.IsKnown(v.keyValue.members[0].contract) && r.IsKnown(v.keyValue.members[1].contract)
		}
		return r.IsKnown(v.item)
	default:
		return r.known.Contain(c.Type())
	}
}

// LookupKnown 按稳定名解析已知类型：显式注册的类型、规范内置标量、元素已知的集合。
func (r *Registry) LookupKnown(name StableName) (Contract, bool) {
	r.mu.RLock()
	c, ok := r.knownByName[name]
	collections := r.collections[name]
	r.mu.RUnlock()
	if ok {
		return c, true
	}
	if p, ok := LookupPrimitiveName(name); ok {
		return p, true
	}
	// 同名集合中优先切片、数组与 map。
	var fallback Contract
	for _, cc := range collections {
		if !r.IsKnown(cc) {
			continue
		}
		if cc.IsBuiltin() {
			return cc, true
		}
		if fallback == nil {
			fallback = cc
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return r.primitiveArray(name)
}

// primitiveArray 为 ArrayOf{primitive} 形式的名称合成元素为规范内置类型的切片契约。
func (r *Registry) primitiveArray(name StableName) (Contract, bool) {
	if name.Namespace != xmlwire.ArraysNamespace || !strings.HasPrefix(name.Name, "ArrayOf") {
		return nil, false
	}
	item, ok := LookupPrimitiveName(StableName{Name: strings.TrimPrefix(name.Name, "ArrayOf"), Namespace: xmlwire.SchemaNamespace})
	if !ok {
		item, ok = LookupPrimitiveName(StableName{Name: strings.TrimPrefix(name.Name, "ArrayOf"), Namespace: xmlwire.SerializationNamespace})
	}
	if !ok {
		return nil, false
	}
	c, err := r.GetContract(reflect.SliceOf(item.Type()))
	if err != nil {
		return nil, false
	}
	return c, true
}

// Len 返回已发布的契约个数，不含内置标量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}
