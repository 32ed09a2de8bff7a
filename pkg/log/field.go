package log

import "time"

// Field is one structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F constructs a Field from an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Str constructs a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int constructs an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 constructs an int64 Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool constructs a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Dur constructs a duration Field, rendered in Go duration syntax.
func Dur(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Err constructs an "error" Field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags logs with a component name.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }
