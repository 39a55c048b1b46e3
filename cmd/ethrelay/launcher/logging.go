package launcher

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// sentryLevels are the logrus levels reported to Sentry.
var sentryLevels = []logrus.Level{
	logrus.PanicLevel,
	logrus.FatalLevel,
	logrus.ErrorLevel,
}

// setupLogging routes the geth log root, which every relay package logs
// through, into a logrus logger built from cfg.
func setupLogging(cfg LoggingConfig) error {
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, sentryLevels)
		if err != nil {
			return fmt.Errorf("sentry: %w", err)
		}
		hook.Timeout = 5 * time.Second
		hook.StacktraceConfiguration.Enable = true
		logger.AddHook(hook)
	}
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(cfg.Verbosity), logrusHandler(logger)))
	return nil
}

func newLogger(cfg LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
			FullTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: text, json)", cfg.Format)
	}
	logger.SetLevel(logrusLevel(log.Lvl(cfg.Verbosity)))
	return logger, nil
}

// logrusLevel maps a geth level onto logrus. Crit maps to Error: geth exits
// by itself after logging a Crit record.
func logrusLevel(lvl log.Lvl) logrus.Level {
	switch {
	case lvl <= log.LvlCrit:
		return logrus.ErrorLevel
	case lvl == log.LvlError:
		return logrus.ErrorLevel
	case lvl == log.LvlWarn:
		return logrus.WarnLevel
	case lvl == log.LvlInfo:
		return logrus.InfoLevel
	case lvl == log.LvlDebug:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// logrusHandler forwards geth log records to logger, turning the key/value
// context into logrus fields.
func logrusHandler(logger *logrus.Logger) log.Handler {
	return log.FuncHandler(func(r *log.Record) error {
		fields := make(logrus.Fields, len(r.Ctx)/2)
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			key, ok := r.Ctx[i].(string)
			if !ok {
				key = fmt.Sprint(r.Ctx[i])
			}
			fields[key] = fieldValue(r.Ctx[i+1])
		}
		entry := logger.WithFields(fields).WithTime(r.Time)
		switch r.Lvl {
		case log.LvlCrit, log.LvlError:
			entry.Error(r.Msg)
		case log.LvlWarn:
			entry.Warn(r.Msg)
		case log.LvlInfo:
			entry.Info(r.Msg)
		case log.LvlDebug:
			entry.Debug(r.Msg)
		default:
			entry.Trace(r.Msg)
		}
		return nil
	})
}

func fieldValue(v interface{}) interface{} {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	return v
}
