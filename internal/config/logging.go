package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cipherlink/cipherlink/internal/fileutil"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// BuildLogger constructs the application logger from the logging
// configuration. Level "off" returns a no-op logger; an empty file
// path logs to stderr.
func (c LoggingConfig) BuildLogger() (*zap.Logger, error) {
	level := strings.ToLower(strings.TrimSpace(c.Level))
	if level == "off" || level == "none" {
		return zap.NewNop(), nil
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, clerr.WithCause(clerr.ErrConfigInvalid, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	zapCfg.Encoding = "json"
	if strings.ToLower(c.Format) == "console" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	zapCfg.OutputPaths = []string{"stderr"}
	if c.File != "" {
		path, err := fileutil.ExpandHome(c.File)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, clerr.Wrap(err, "creating log directory")
		}
		zapCfg.OutputPaths = []string{path}
	}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, clerr.Wrap(err, "building logger")
	}
	return logger, nil
}
