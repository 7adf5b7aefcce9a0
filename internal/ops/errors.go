package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jbweber/blockyard/internal/model"
)

// Class is the uniform failure classification shared by every operation.
type Class string

const (
	// ClassValidation: locally detected bad input; the service was never
	// contacted.
	ClassValidation Class = "validation"
	// ClassUnsupported: the device lacks the capability; resolved locally
	// or reported by the service as an unknown method.
	ClassUnsupported Class = "unsupported"
	// ClassAuthenticationFailed: wrong passphrase or denied authorization.
	ClassAuthenticationFailed Class = "authentication-failed"
	// ClassBusy: blocking holders exist; Holders lists them when known.
	ClassBusy Class = "busy"
	// ClassTransientTransport: service unreachable or subscription lost.
	ClassTransientTransport Class = "transient-transport"
	// ClassRemoteOperationFailed: the service executed and failed; the
	// original error name and message are preserved.
	ClassRemoteOperationFailed Class = "remote-operation-failed"
	// ClassCancelled: the caller dropped interest before completion.
	ClassCancelled Class = "cancelled"
	// ClassTimedOut: the per-operation-class deadline elapsed.
	ClassTimedOut Class = "timed-out"
)

// Error is a classified operation failure. Remote failures keep the
// service's original error name and message, with secrets scrubbed.
type Error struct {
	Class   Class
	Op      model.OpKind
	Name    string // Original remote error identifier, if any
	Message string
	Holders []string // Blocking holder devices, for ClassBusy
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Class)
	if e.Name != "" {
		fmt.Fprintf(&b, " (%s)", e.Name)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.Holders) > 0 {
		fmt.Fprintf(&b, " [held by %s]", strings.Join(e.Holders, ", "))
	}
	return b.String()
}

// Error names the transport itself may produce.
const (
	dbusErrNoReply      = "org.freedesktop.DBus.Error.NoReply"
	dbusErrTimeout      = "org.freedesktop.DBus.Error.Timeout"
	dbusErrTimedOut     = "org.freedesktop.DBus.Error.TimedOut"
	dbusErrUnknownMeth  = "org.freedesktop.DBus.Error.UnknownMethod"
	dbusErrUnknownIface = "org.freedesktop.DBus.Error.UnknownInterface"
	dbusErrUnknownObj   = "org.freedesktop.DBus.Error.UnknownObject"
	dbusErrNotSupported = "org.freedesktop.DBus.Error.NotSupported"
	dbusErrServiceUnk   = "org.freedesktop.DBus.Error.ServiceUnknown"
	dbusErrNoOwner      = "org.freedesktop.DBus.Error.NameHasNoOwner"
	dbusErrDisconnected = "org.freedesktop.DBus.Error.Disconnected"
)

// Error names the storage service produces.
const (
	svcErrBusy          = "org.freedesktop.UDisks2.Error.DeviceBusy"
	svcErrNotSupported  = "org.freedesktop.UDisks2.Error.NotSupported"
	svcErrCancelled     = "org.freedesktop.UDisks2.Error.Cancelled"
	svcErrNotAuthorized = "org.freedesktop.UDisks2.Error.NotAuthorized"
)

// classify maps a raw call failure onto the taxonomy. Secrets are scrubbed
// from the preserved message before it goes anywhere.
func classify(op model.OpKind, err error, secrets []string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ClassTimedOut, Op: op}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Class: ClassCancelled, Op: op}
	}

	var derr dbus.Error
	if !errors.As(err, &derr) {
		// Not a service reply at all: the transport failed underneath us.
		return &Error{
			Class:   ClassTransientTransport,
			Op:      op,
			Message: scrub(err.Error(), secrets),
		}
	}

	e := &Error{
		Op:      op,
		Name:    derr.Name,
		Message: scrub(messageOf(derr), secrets),
	}

	switch derr.Name {
	case dbusErrNoReply, dbusErrTimeout, dbusErrTimedOut:
		e.Class = ClassTimedOut
	case dbusErrUnknownMeth, dbusErrUnknownIface, dbusErrUnknownObj,
		dbusErrNotSupported, svcErrNotSupported:
		e.Class = ClassUnsupported
	case dbusErrServiceUnk, dbusErrNoOwner, dbusErrDisconnected:
		e.Class = ClassTransientTransport
	case svcErrBusy:
		e.Class = ClassBusy
		e.Holders = holdersOf(derr)
	case svcErrCancelled:
		e.Class = ClassCancelled
	default:
		if strings.HasPrefix(derr.Name, svcErrNotAuthorized) {
			e.Class = ClassAuthenticationFailed
			break
		}
		e.Class = ClassRemoteOperationFailed
	}
	return e
}

// messageOf extracts the human-readable message from a service error body.
func messageOf(derr dbus.Error) string {
	if len(derr.Body) == 0 {
		return ""
	}
	if s, ok := derr.Body[0].(string); ok {
		return s
	}
	return ""
}

// holdersOf extracts holder device paths when the service reports them
// alongside a busy error.
func holdersOf(derr dbus.Error) []string {
	if len(derr.Body) < 2 {
		return nil
	}
	if holders, ok := derr.Body[1].([]string); ok {
		return holders
	}
	return nil
}

const redacted = "[redacted]"

// scrub removes every secret from a message destined for errors or logs.
func scrub(msg string, secrets []string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, redacted)
	}
	return msg
}
