/*
Package log is the shared logger of the verifier, built on zerolog (https://github.com/rs/zerolog).

The logger reads an optional toml file. Every field is optional; missing ones fall back
to the defaults noted below.

 # default level for every module: debug/info/warn/error/fatal/panic
 level = "info"

 # output formatter: console, console_no_color, json
 formatter = "console"

 # print source file and line
 caller = false

 # layout of the time field, see time/format.go
 timefieldformat = "15:04:05"

 # stdout, stderr or a file path
 out = "stderr"

 # per module overrides, only level and out are honoured
 [verifier]
 level = "debug"

 [aggregator]
 out = "fetch.log"

The file is looked up as safelog.toml in the working directory, or at the path stored in
the SAFEVERIFY_LOGCONFIG environment variable. Loggers are created lazily on first use,
so command line flags cannot point at the file.
*/
package log

import (
	"errors"
	"os"
	"strings"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	confFilePathKey     = "LOGCONFIG"
	confEnvPrefix       = "SAFEVERIFY"
	defaultConfFileName = "safelog"
)

var (
	baseLogger = zerolog.New(os.Stderr)
	baseLevel  = zerolog.InfoLevel
	initLock   sync.Mutex
	isInit     = false
	viperConf  = viper.New()
)

// Logger is a module scoped zerolog logger.
type Logger struct {
	*zerolog.Logger
	name  string
	level zerolog.Level
}

func loadConfigFile() {
	viperConf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConf.SetEnvPrefix(confEnvPrefix)
	viperConf.AutomaticEnv()

	viperConf.SetConfigType("toml")
	viperConf.SetConfigName(defaultConfFileName)
	viperConf.AddConfigPath(".")

	if path := viperConf.GetString(confFilePathKey); path != "" {
		viperConf.SetConfigFile(path)
		baseLogger.Info().Str("file", path).Msg("loading logger configuration")
	}

	if err := viperConf.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			baseLogger.Error().Err(err).Msg("failed to read logger configuration")
		}
	}
}

func initLog() {
	if format := viperConf.GetString("timefieldformat"); format != "" {
		zerolog.TimeFieldFormat = format
	}

	out := os.Stderr
	if name := viperConf.GetString("out"); name != "" {
		o, err := getOutput(name)
		if err != nil {
			baseLogger.Warn().Err(err).Str("out", name).Msg("cannot open log output, keeping stderr")
		} else {
			out = o
		}
	}
	baseLogger = baseLogger.Output(out)

	switch formatter := strings.ToLower(viperConf.GetString("formatter")); formatter {
	case "", "console":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{
			Out:        colorable.NewColorable(out),
			TimeFormat: "15:04:05",
		})
	case "console_no_color":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "15:04:05"})
	case "json":
	default:
		baseLogger.Warn().Str("formatter", formatter).Msg("unknown formatter, allowed: console/console_no_color/json")
	}

	if viperConf.GetBool("caller") {
		baseLogger = baseLogger.With().Caller().Logger()
	}

	level := zerolog.InfoLevel
	if s := viperConf.GetString("level"); s != "" {
		parsed, err := zerolog.ParseLevel(s)
		if err != nil {
			baseLogger.Warn().Err(err).Str("level", s).Msg("invalid log level, using info")
		} else {
			level = parsed
		}
	}

	baseLogger = baseLogger.With().Timestamp().Logger().Level(level)
	baseLevel = level
}

func ensureInit(withConfig bool) {
	if isInit {
		return
	}
	if withConfig {
		loadConfigFile()
	}
	initLog()
	isInit = true
}

// NewLogger returns a logger tagged with module=moduleName. Module sections of the
// configuration file override the level and the output of the base logger.
func NewLogger(moduleName string) *Logger {
	initLock.Lock()
	defer initLock.Unlock()
	ensureInit(true)

	zLogger := baseLogger.With().Str("module", moduleName).Logger()
	level := baseLevel

	if sub := viperConf.Sub(moduleName); sub != nil {
		if name := sub.GetString("out"); name != "" {
			if out, err := getOutput(name); err == nil {
				zLogger = zLogger.Output(out)
			} else {
				baseLogger.Warn().Err(err).Str("out", name).Str("module", moduleName).Msg("cannot open module log output")
			}
		}
		if s := sub.GetString("level"); s != "" {
			parsed, err := zerolog.ParseLevel(s)
			if err != nil {
				parsed = zerolog.InfoLevel
			}
			level = parsed
			zLogger = zLogger.Level(level)
		}
	}

	return &Logger{Logger: &zLogger, name: moduleName, level: level}
}

// Default returns the base logger, without a module tag.
func Default() *Logger {
	initLock.Lock()
	defer initLock.Unlock()
	ensureInit(false)

	return &Logger{Logger: &baseLogger, level: baseLevel}
}

// Nop returns a logger that discards everything. Used by tests and library callers
// that do not want output.
func Nop() *Logger {
	l := zerolog.Nop()
	return &Logger{Logger: &l, name: "nop", level: zerolog.Disabled}
}

var errEmptyName = errors.New("empty output name")

// getOutput maps stdout/stderr to the process streams and anything else to a file
// opened for appending.
func getOutput(name string) (*os.File, error) {
	switch name {
	case "":
		return nil, errEmptyName
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0644)
	}
}

// IsDebugEnabled reports whether debug statements are emitted, so callers can skip
// building expensive debug fields.
func (logger *Logger) IsDebugEnabled() bool {
	return logger.level <= zerolog.DebugLevel
}

// Level returns the effective level name.
func (logger *Logger) Level() string {
	return logger.level.String()
}

// Name returns the module name of the logger.
func (logger *Logger) Name() string {
	return logger.name
}
