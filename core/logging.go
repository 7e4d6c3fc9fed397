package core

// Logger is implemented by the logging backends (services/logger).
// args may carry bare values to dump, a map[string]interface{} of extras
// or a user.User to attach to the report.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
