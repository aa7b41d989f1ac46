package quotareset

// Field is one key/value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logging contract consumed by the executor and the
// health monitor. Adapters for concrete backends live under logger/.
type Logger interface {
	// Debug logs at debug level.
	Debug(msg string, fields ...Field)

	// Info logs at info level.
	Info(msg string, fields ...Field)

	// Warn logs at warning level.
	Warn(msg string, fields ...Field)

	// Error logs at error level.
	Error(msg string, fields ...Field)
}

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

func (n *NoopLogger) Debug(msg string, fields ...Field) {}
func (n *NoopLogger) Info(msg string, fields ...Field)  {}
func (n *NoopLogger) Warn(msg string, fields ...Field)  {}
func (n *NoopLogger) Error(msg string, fields ...Field) {}
