// Package protocol is the generic state machine core that drives concrete
// protocols such as trust establishment.
//
// A Definition declares a protocol as a table of transitions keyed by
// (state, message, channel). For each received message the Engine loads the
// instance state from the device database, looks up the unique matching
// transition, runs it inside one database transaction and persists the new
// state together with the outbound messages and dialogs it produced. Instances
// are deleted when they reach a terminal state.
//
// Outcomes
//
//   - A message with no transition for the current state is dropped, or
//     parked when its instance exists and it came from another device. Parked
//     messages are retried after every transition of the instance.
//   - A step returning ErrDrop is rolled back and the message is discarded.
//   - A step returning any other error is rolled back and the instance is
//     cancelled, deleting its dialog.
//   - A step returning a Canceller state ends the instance with a cause.
//
// Outbound messages go through a transactional outbox flushed after commit.
// Messages to sibling devices are best effort; failures are logged and the
// message is discarded. Messages to contacts stay queued until posted.
package protocol
