package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// thin wrapper around zap so the rest of the code does not need to
// import zap directly

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option
	Logger struct {
		l     *zap.Logger
		level Level
	}
)

const (
	DebugLevel = zap.DebugLevel
	InfoLevel  = zap.InfoLevel
	WarnLevel  = zap.WarnLevel
	ErrorLevel = zap.ErrorLevel
	FatalLevel = zap.FatalLevel
)

var (
	Skip       = zap.Skip
	Binary     = zap.Binary
	Bool       = zap.Bool
	Duration   = zap.Duration
	Float64    = zap.Float64
	Int        = zap.Int
	Int32      = zap.Int32
	Int64      = zap.Int64
	Uint32     = zap.Uint32
	Uint64     = zap.Uint64
	String     = zap.String
	Time       = zap.Time
	Any        = zap.Any
	ErrorField = zap.Error

	WithCaller    = zap.WithCaller
	AddStacktrace = zap.AddStacktrace
	AddCallerSkip = zap.AddCallerSkip
)

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a json logger writing to w for messages >= level
func New(w io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(w, level, zap.NewProductionEncoderConfig(),
		zapcore.NewJSONEncoder, opts...)
}

// DevLogger creates a console logger writing to w for messages >= level
func DevLogger(w io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(w, level, cfg, zapcore.NewConsoleEncoder, opts...)
}

//nolint:whitespace // can't make both editor and linter happy
func newLogger(
	w io.Writer,
	level Level,
	encCfg zapcore.EncoderConfig,
	newEnc func(zapcore.EncoderConfig) zapcore.Encoder,
	opts ...Option,
) *Logger {
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(newEnc(encCfg), zapcore.AddSync(w), level)
	if filterRules != "" {
		if ff, err := zapfilter.ParseRules(filterRules); err == nil {
			core = zapfilter.NewFilteringCore(core, ff)
		}
	}
	return &Logger{l: zap.New(core, opts...), level: level}
}

// Config describes the content of an optional logger config file.
// Filters use the zapfilter rule syntax, for example
// "debug:race.*,recovery.* info:*".
type Config struct {
	DefaultLevel string `yaml:"defaultLevel"`
	Filters      string `yaml:"filters"`
}

var filterRules string

// LoadConfig reads the logger config file and activates its filter rules
// for loggers created afterwards.
func LoadConfig(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	filterRules = cfg.Filters
	return cfg, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) Level() Level { return l.level }

func (l *Logger) Sync() error { return l.l.Sync() }

var std = DevLogger(os.Stderr, InfoLevel)

func Default() *Logger { return std }

// ResetDefault replaces the package level default logger.
// Not safe for concurrent use, call it once during startup.
func ResetDefault(l *Logger) {
	std = l
	Debug = std.Debug
	Info = std.Info
	Warn = std.Warn
	Error = std.Error
	Fatal = std.Fatal
}

var (
	Debug = std.Debug
	Info  = std.Info
	Warn  = std.Warn
	Error = std.Error
	Fatal = std.Fatal
)

func Sync() error {
	if std != nil {
		return std.Sync()
	}
	return nil
}
