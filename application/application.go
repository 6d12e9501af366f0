package application

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	zlog "github.com/lk2023060901/zeus-datacontract/pkg/log"
	"github.com/lk2023060901/zeus-datacontract/pkg/serialization"
	zviper "github.com/lk2023060901/zeus-datacontract/pkg/util/viper"
)

const defaultConfigPath = "./config.yaml"

// Application is the runtime container for a process that exchanges
// data contract documents. It owns configuration, loggers and the
// serialization options shared by every serializer it hands out.
type Application struct {
	configPath string
	cfg        *zviper.Config
	loggers    map[string]*zlog.MLogger
	opts       serialization.Options
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run loads configuration and initializes logging and serialization options.
// The config file is resolved with the following priority:
//  1. Default: ./config.yaml (optional)
//  2. Env: ZEUS_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Run() error {
	path, explicit, err := resolveConfigPath(os.Args[1:])
	if err != nil {
		return err
	}
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	a.configPath = path

	cfg := zviper.New()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return fmt.Errorf("failed to load config file %q: %w", path, err)
		}
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	opts, err := serialization.LoadOptions(path)
	if err != nil {
		return fmt.Errorf("load serialization options: %w", err)
	}
	a.opts = opts
	return nil
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Options returns the serialization options loaded by Run.
func (a *Application) Options() serialization.Options {
	return a.opts
}

// Serializer creates a serializer for root type t using the loaded options.
func (a *Application) Serializer(t reflect.Type) (*serialization.DataContractSerializer, error) {
	opts := a.opts
	s, err := serialization.NewDataContractSerializer(t, &opts)
	if err != nil {
		return nil, err
	}
	s.SetLogger(a.Logger("datacontract"))
	return s, nil
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

func resolveConfigPath(args []string) (path string, explicit bool, err error) {
	path = defaultConfigPath
	if envPath := os.Getenv("ZEUS_CONFIG_FILE_PATH"); envPath != "" {
		path, explicit = envPath, true
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", false, fmt.Errorf("missing value after --config")
			}
			path, explicit = args[i+1], true
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "--config="); ok && val != "" {
			path, explicit = val, true
		}
	}
	return path, explicit, nil
}

// initLogging initializes the global logger from the "log" key and
// module-level loggers from the "logging" key.
func (a *Application) initLogging() error {
	conf, err := zlog.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if getenvBool("ZEUS_LOG_DISABLE", false) {
		conf.Stdout = false
		conf.File.Filename = ""
	}
	logger, props, err := zlog.InitLogger(conf)
	if err != nil {
		return fmt.Errorf("init global logger: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)

	return a.initModuleLoggersFromConfig()
}

// initModuleLoggersFromConfig creates named loggers from the "logging" key.
//
// Example:
//
//	logging:
//	  datacontract:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: datacontract.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
