package log

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/zeus-datacontract/pkg/util/viper"
)

// ConfigKey 是配置文件中日志配置所在的键。
const ConfigKey = "log"

// LoadConfig 从 YAML 或 JSON 配置文件的 log 键读取日志配置，
// path 为空时返回默认配置（info 级别、console 格式、输出到标准输出）。
func LoadConfig(path string) (*Config, error) {
	cfg := viper.New()
	cfg.SetDefault(ConfigKey+".level", "info")
	cfg.SetDefault(ConfigKey+".format", "console")
	cfg.SetDefault(ConfigKey+".stdout", true)
	cfg.SetDefault(ConfigKey+".file.max-size", defaultLogMaxSize)
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, errors.Wrapf(err, "load log config from %s", path)
		}
	}
	var wrapper struct {
		Log Config `mapstructure:"log"`
	}
	if err := cfg.Unmarshal(&wrapper); err != nil {
		return nil, errors.Wrap(err, "decode log config")
	}
	return &wrapper.Log, nil
}
