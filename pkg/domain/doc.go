/*
Package domain contains the core types shared by every parley package.

It defines the signal taxonomy that flows through the engine, the directive a
handler returns, the error classification used by error signals, and the
lifecycle hooks used for observability. The package has no I/O.

# Key Entities

  - Signal: a typed event envelope (type tag, payload, metadata).
  - Directive: skip, emit or halt, returned by every handler.
  - ErrorKind / ErrorSource: how failures are classified once they become signals.
  - LifecycleHooks: callbacks raised by the engine while a signal is processed.
*/
package domain
