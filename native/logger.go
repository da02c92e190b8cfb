package native

import (
	"raya/interp"
	"raya/runtimelog"
	"raya/value"
)

// registerLogger installs the logger range (0x1000-0x100F), grounded on
// runtimelog.Component, itself grounded on the teacher's ad-hoc stderr
// writes replaced by leveled zerolog events (runtimelog/runtimelog.go).
// Each handler is the NATIVE_CALL-facing counterpart of a stdlib
// `log.debug/info/warn/error(message)` call.
func (t *Table) registerLogger() {
	t.Register(rangeLoggerStart+0, "log.debug", logAt("debug"))
	t.Register(rangeLoggerStart+1, "log.info", logAt("info"))
	t.Register(rangeLoggerStart+2, "log.warn", logAt("warn"))
	t.Register(rangeLoggerStart+3, "log.error", logAt("error"))
}

func logAt(level string) interp.NativeHandler {
	return func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		if len(args) != 1 {
			return argErr("log native expects exactly one argument")
		}
		msg, ok := goString(ctx, args[0])
		if !ok {
			return argErr("log native expects a string argument")
		}
		log := runtimelog.Component("raya")
		switch level {
		case "debug":
			log.Debug().Msg(msg)
		case "info":
			log.Info().Msg(msg)
		case "warn":
			log.Warn().Msg(msg)
		default:
			log.Error().Msg(msg)
		}
		return valueResult(value.Null())
	}
}
