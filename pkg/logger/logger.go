package logger

import (
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Debug           bool
	SentryDSN       string
	SentryClient    *sentry.Client
	BreadcrumbLevel zapcore.Level
	Tags            map[string]string
}

// Logger is a zap logger plus the sentry client its error entries go to, if any.
type Logger struct {
	*zap.Logger
	sentry *sentry.Client
}

// New builds a development logger when cfg.Debug is set and a production one
// otherwise. Error entries are forwarded to sentry when a DSN or client is given.
func New(cfg Config) (*Logger, error) {
	var zapConfig zap.Config
	if cfg.Debug {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	base, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return attachSentry(cfg, base)
}

func attachSentry(cfg Config, base *zap.Logger) (*Logger, error) {
	client := cfg.SentryClient
	if client == nil && cfg.SentryDSN != "" {
		var err error
		client, err = sentry.NewClient(sentry.ClientOptions{
			Dsn:   cfg.SentryDSN,
			Debug: cfg.Debug,
		})
		if err != nil {
			return nil, err
		}
	}
	if client == nil {
		return &Logger{Logger: base}, nil
	}

	breadcrumbLevel := cfg.BreadcrumbLevel
	if breadcrumbLevel == zapcore.InvalidLevel {
		breadcrumbLevel = zapcore.InfoLevel
	}
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   breadcrumbLevel,
		Tags:              cfg.Tags,
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zapsentry.AttachCoreToLogger(core, base), sentry: client}, nil
}

// Flush syncs the zap logger and waits up to timeout for sentry events.
func (l *Logger) Flush(timeout time.Duration) {
	_ = l.Sync()
	if l.sentry != nil {
		l.sentry.Flush(timeout)
	}
}
