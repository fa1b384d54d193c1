// Package logging builds the zap loggers used by hsauthd and the load tool.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and optional file output. File is a
// path; rotated files get a date suffix and File itself is kept as a
// symlink to the current one.
type Config struct {
	Level        string        `env:"LEVEL" envDefault:"info"`
	Dev          bool          `env:"DEV"`
	File         string        `env:"FILE"`
	MaxAge       time.Duration `env:"MAX_AGE" envDefault:"168h"`
	RotationTime time.Duration `env:"ROTATION_TIME" envDefault:"24h"`
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg. The returned cleanup flushes the logger
// and closes the rotating file, if any.
func New(cfg Config) (*zap.Logger, func(), error) {
	lvl := levelFromString(cfg.Level)

	var encoder zapcore.Encoder
	if cfg.Dev {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)}

	var rl *rotatelogs.RotateLogs
	if cfg.File != "" {
		var err error
		rl, err = openRotating(cfg)
		if err != nil {
			return nil, nil, err
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rl), lvl))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)

	cleanup := func() {
		_ = logger.Sync()
		if rl != nil {
			_ = rl.Close()
		}
	}
	return logger, cleanup, nil
}

func openRotating(cfg Config) (*rotatelogs.RotateLogs, error) {
	path := filepath.Clean(cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	rotation := cfg.RotationTime
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}

	rl, err := rotatelogs.New(
		path+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("rotating log file: %w", err)
	}
	return rl, nil
}
