package logging

import "time"

// Field is a typed key-value pair attached to a log entry.  A concrete struct
// instead of variadic interface{} keeps call sites explicit and lets the zap
// backend map the common types without reflection.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, val string) Field { return Field{Key: key, Value: val} }

func Int(key string, val int) Field { return Field{Key: key, Value: val} }

func Int64(key string, val int64) Field { return Field{Key: key, Value: val} }

func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }

func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }

// Duration records a time.Duration under the given key.
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }

// Err records an error under the canonical key "error".  A nil error becomes
// the string "<nil>" so the field never vanishes from an entry.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any is the fallback for values no typed constructor covers.
func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }
