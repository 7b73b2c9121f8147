package metrics

import "time"

// LineMetrics provides observability for the line protocol adapter and the
// command interpreter behind it.
//
// This interface is optional - if not provided to the line adapter, a no-op
// implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewLineMetrics()
//	adapter := line.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := line.New(config, nil)
type LineMetrics interface {
	// RecordCommand records a completed command.
	//
	// Parameters:
	//   - verb: Command verb (e.g., "login", "read_file"), "unknown" for
	//     unrecognized verbs
	//   - outcome: Response outcome (e.g., "logged_in", "bad_input"),
	//     "error" when the command failed with an I/O error
	//   - duration: Time taken to process the command
	RecordCommand(verb string, outcome string, duration time.Duration)

	// RecordCommandStart increments the in-flight command counter.
	RecordCommandStart(verb string)

	// RecordCommandEnd decrements the in-flight command counter.
	RecordCommandEnd(verb string)

	// RecordBytesTransferred records bytes received or sent on connections.
	//
	// Parameters:
	//   - direction: "in" or "out"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes uint64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// closed because the shutdown timeout expired.
	RecordConnectionForceClosed()

	// RecordConnectionRejected increments the counter of connections refused
	// because max_connections was reached.
	RecordConnectionRejected()
}

// NewNoopLineMetrics returns a LineMetrics that discards everything.
func NewNoopLineMetrics() LineMetrics {
	return noopLineMetrics{}
}

type noopLineMetrics struct{}

func (noopLineMetrics) RecordCommand(verb string, outcome string, duration time.Duration) {}
func (noopLineMetrics) RecordCommandStart(verb string)                                    {}
func (noopLineMetrics) RecordCommandEnd(verb string)                                      {}
func (noopLineMetrics) RecordBytesTransferred(direction string, bytes uint64)             {}
func (noopLineMetrics) SetActiveConnections(count int32)                                  {}
func (noopLineMetrics) RecordConnectionAccepted()                                         {}
func (noopLineMetrics) RecordConnectionClosed()                                           {}
func (noopLineMetrics) RecordConnectionForceClosed()                                      {}
func (noopLineMetrics) RecordConnectionRejected()                                         {}
