package types

// MessageFunc receives human-readable progress messages from a pipeline
// stage. A nil MessageFunc is valid and discards messages. Implementations
// must be safe for concurrent use; stages may call them from worker
// goroutines.
type MessageFunc func(msg string)

// ProgressFunc receives an integer completion percentage in [0, 100].
// Within one stage invocation the reported values are monotonically
// non-decreasing. A nil ProgressFunc is valid and discards updates.
type ProgressFunc func(pct int)

// Emit invokes the sink if it is non-nil.
func (f MessageFunc) Emit(msg string) {
	if f != nil {
		f(msg)
	}
}

// Emit invokes the sink if it is non-nil.
func (f ProgressFunc) Emit(pct int) {
	if f != nil {
		f(pct)
	}
}
