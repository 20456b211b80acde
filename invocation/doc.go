// Package invocation defines the invocation entity, its state machine, and
// the store contract shared by the queue and the result backend.
//
// An [Invocation] is one ephemeral request to run a registered task. It
// carries the encoded arguments, and once a worker finishes it, the
// encoded result or the error message:
//
//	pending → running → succeeded
//	pending → running → failed
//
// Invocations submitted together by a distributed map share a GroupID and
// record their position in GroupIndex so results can be joined in input
// order.
package invocation
