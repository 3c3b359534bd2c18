// Package flows contains the session lifecycle logic as pure functions over
// injected dependencies. Each Run* function receives a Deps struct of
// closures, performs the protocol steps in order, and reports failures as a
// FailureKind that the public package maps to its sentinel errors.
//
// Nothing in this package touches globals, loggers, or metrics directly. That
// keeps the protocol deterministic under test: every clock read, ID draw, and
// store call arrives through Deps.
package flows
