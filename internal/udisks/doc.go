// Package udisks provides a client wrapper for the storage-management
// service reachable on the D-Bus system bus.
//
// This package wraps github.com/godbus/dbus/v5 to provide:
//   - Shared, reference-counted connection management (Acquire, Release, Ping)
//   - Typed decoding of the service's managed-object tree into Object values
//   - Context-bounded operation calls (mount, format, unlock, power, ...)
//   - Structural change-signal subscription for the notifier
//
// Connection Management:
//
// The connection is a single process-wide resource. Every user acquires a
// reference and releases it when done; the underlying bus connection is only
// closed when the last reference is released. Opening a connection per call
// or per command risks descriptor exhaustion and duplicate subscriptions.
//
//	client, err := udisks.Acquire("")
//	if err != nil {
//	    return err
//	}
//	defer client.Release()
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Consumers (internal/directory,
// internal/tree, internal/ops, internal/notify) define their own interfaces
// specifying only the operations they need. The *udisks.Client type satisfies
// these interfaces implicitly, enabling clean dependency injection.
package udisks
