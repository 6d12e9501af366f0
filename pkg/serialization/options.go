package serialization

import (
	"math"
	"reflect"

	"github.com/lk2023060901/zeus-datacontract/pkg/contract"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/merr"
	"github.com/lk2023060901/zeus-datacontract/pkg/util/viper"
)

const (
	// DefaultMaxItemsInGraph 为对象图中允许的最大对象数。
	DefaultMaxItemsInGraph = math.MaxInt32
	// DefaultMaxDepth 为读取时允许的最大元素嵌套深度。
	DefaultMaxDepth = 256

	// ConfigKey 是配置文件中序列化选项所在的键。
	ConfigKey = "serialization"
	// EnvPrefix 是覆盖序列化选项的环境变量前缀，例如 ZEUS_DC_SERIALIZATION_MAX_DEPTH。
	EnvPrefix = "ZEUS_DC"
)

// TypeResolver 在已知类型之外提供类型与稳定名之间的映射。
type TypeResolver interface {
	// TryResolveType 返回写出 i:type 时使用的名称，ok 为 false 表示无法解析。
	TryResolveType(t reflect.Type) (name contract.StableName, ok bool)
	// ResolveName 返回 i:type 名称对应的 Go 类型。
	ResolveName(name contract.StableName) (t reflect.Type, ok bool)
}

// Options 控制一次序列化或反序列化调用。零值等价于 DefaultOptions。
type Options struct {
	// PreserveReferences 为 true 时共享对象与循环引用以 z:Id/z:Ref 表示。
	PreserveReferences bool `mapstructure:"preserve-references"`
	// MaxItemsInGraph 限制对象图中的对象个数，集合的每个元素各计一次。
	MaxItemsInGraph int `mapstructure:"max-items-in-graph"`
	// IgnoreExtensionData 为 true 时未知成员直接跳过，不再捕获。
	IgnoreExtensionData bool `mapstructure:"ignore-extension-data"`
	// RootName 与 RootNamespace 覆盖根元素名称。
	RootName      string `mapstructure:"root-name"`
	RootNamespace string `mapstructure:"root-namespace"`
	// MaxDepth 限制读取时的元素嵌套深度。
	MaxDepth int `mapstructure:"max-depth"`

	// AdditionalKnownTypes 是调用方额外允许出现在 i:type 中的类型。
	AdditionalKnownTypes []reflect.Type `mapstructure:"-"`
	TypeResolver         TypeResolver   `mapstructure:"-"`
	// Registry 为 nil 时使用 contract.Default()。
	Registry *contract.Registry `mapstructure:"-"`
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{
		MaxItemsInGraph: DefaultMaxItemsInGraph,
		MaxDepth:        DefaultMaxDepth,
	}
}

// normalize 返回补齐默认值后的副本。
func (o *Options) normalize() (Options, error) {
	var opts Options
	if o != nil {
		opts = *o
	}
	var errs []error
	if opts.MaxItemsInGraph < 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("max items in graph must not be negative, got %d", opts.MaxItemsInGraph))
	}
	if opts.MaxDepth < 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("max depth must not be negative, got %d", opts.MaxDepth))
	}
	if opts.RootNamespace != "" && opts.RootName == "" {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("root namespace %q set without root name", opts.RootNamespace))
	}
	// 一次报告全部非法选项。
	if err := merr.Combine(errs...); err != nil {
		return opts, err
	}
	if opts.MaxItemsInGraph == 0 {
		opts.MaxItemsInGraph = DefaultMaxItemsInGraph
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Registry == nil {
		opts.Registry = contract.Default()
	}
	return opts, nil
}

// LoadOptions 从 YAML 或 JSON 配置文件的 serialization 键读取选项，
// 环境变量（前缀 ZEUS_DC）优先于文件。path 为空时只读取默认值与环境变量。
func LoadOptions(path string) (Options, error) {
	cfg := viper.New()
	defaults := DefaultOptions()
	cfg.SetDefault(ConfigKey+".preserve-references", defaults.PreserveReferences)
	cfg.SetDefault(ConfigKey+".max-items-in-graph", defaults.MaxItemsInGraph)
	cfg.SetDefault(ConfigKey+".ignore-extension-data", defaults.IgnoreExtensionData)
	cfg.SetDefault(ConfigKey+".root-name", defaults.RootName)
	cfg.SetDefault(ConfigKey+".root-namespace", defaults.RootNamespace)
	cfg.SetDefault(ConfigKey+".max-depth", defaults.MaxDepth)
	cfg.BindEnv(EnvPrefix)
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Options{}, merr.WrapErrParameterInvalidMsg("load serialization options from %s: %v", path, err)
		}
	}

	var wrapper struct {
		Serialization Options `mapstructure:"serialization"`
	}
	if err := cfg.Unmarshal(&wrapper); err != nil {
		return Options{}, merr.WrapErrParameterInvalidMsg("decode serialization options: %v", err)
	}
	opts := wrapper.Serialization
	if _, err := opts.normalize(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
