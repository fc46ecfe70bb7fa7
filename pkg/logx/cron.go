package logx

import "fmt"

// CronLogger adapts l to robfig/cron's Logger interface.
type CronLogger struct{ L Logger }

func (c CronLogger) Info(msg string, keysAndValues ...any) {
	c.L.Debug(msg, kvFields(keysAndValues)...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.L.Error(msg, append(kvFields(keysAndValues), Err(err))...)
}

func kvFields(kv []any) []Field {
	out := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
