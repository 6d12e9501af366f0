package viper

import (
	"io"
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 未加载任何文件时，Unmarshal 只会得到默认值和环境变量。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.ensure()
	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// LoadReader 从 reader 读取指定格式（yaml/json/toml）的配置。
func (c *Config) LoadReader(format string, r io.Reader) error {
	c.ensure()
	c.v.SetConfigType(format)
	return c.v.ReadConfig(r)
}

// BindEnv 开启以 prefix 为前缀的环境变量覆盖，key 中的 "." 和 "-" 映射为 "_"。
// 例如 prefix 为 ZEUS_DC 时，serializer.max-items 对应 ZEUS_DC_SERIALIZER_MAX_ITEMS。
func (c *Config) BindEnv(prefix string) {
	c.ensure()
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()
}

// SetDefault 设置 key 的默认值，优先级低于文件与环境变量。
func (c *Config) SetDefault(key string, value any) {
	c.ensure()
	c.v.SetDefault(key, value)
}

// IsSet 判断 key 是否出现在任意配置来源中。
func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.UnmarshalKey(key, dst)
}

func (c *Config) ensure() {
	if c.v == nil {
		c.v = spfviper.New()
	}
}
