// SPDX-License-Identifier: MIT
package validate

// LogLevel is a level name accepted by the logger.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogLevels lists the accepted level names, most verbose first.
var LogLevels = []string{
	string(LogLevelTrace),
	string(LogLevelDebug),
	string(LogLevelInfo),
	string(LogLevelWarn),
	string(LogLevelError),
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	for _, name := range LogLevels {
		if string(l) == name {
			return true
		}
	}
	return false
}

// LogLevel validates a log level name. Empty selects the default.
func (v *Validator) LogLevel(field, level string) {
	if level == "" {
		return
	}
	v.OneOf(field, level, LogLevels)
}
