package ops

import (
	"fmt"

	"github.com/jbweber/blockyard/internal/model"
)

// Alignment required of a requested partition offset. The service may
// additionally round to its own geometry.
const offsetAlignment = 512

func invalid(op model.OpKind, format string, args ...interface{}) *Error {
	return &Error{Class: ClassValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// validate checks a request for locally detectable mistakes. It never
// contacts the service.
func validate(req model.OperationRequest) *Error {
	if req.Target == "" {
		return invalid(req.Kind, "target is required")
	}

	switch req.Kind {
	case model.OpMount, model.OpUnmount, model.OpLock, model.OpCheck,
		model.OpRepair, model.OpDeletePartition, model.OpSetFlags,
		model.OpPowerOff, model.OpStandby, model.OpWake, model.OpSetLabel:
		return nil

	case model.OpUnlock:
		if req.Passphrase == "" {
			return invalid(req.Kind, "passphrase is required")
		}

	case model.OpChangePassphrase:
		if req.Passphrase == "" {
			return invalid(req.Kind, "current passphrase is required")
		}
		if req.NewPassphrase == "" {
			return invalid(req.Kind, "new passphrase is required")
		}
		if req.NewPassphrase != req.Confirm {
			return invalid(req.Kind, "new passphrase and confirmation do not match")
		}

	case model.OpFormat:
		if req.FSType == "" {
			return invalid(req.Kind, "filesystem type is required")
		}

	case model.OpResize:
		if req.Size == 0 {
			return invalid(req.Kind, "size must be greater than 0")
		}

	case model.OpCreatePartition:
		if req.Size == 0 {
			return invalid(req.Kind, "size must be greater than 0")
		}
		if req.Offset%offsetAlignment != 0 {
			return invalid(req.Kind, "offset %d is not aligned to %d bytes", req.Offset, offsetAlignment)
		}

	case model.OpSelfTest:
		switch req.TestKind {
		case "short", "extended", "conveyance":
		default:
			return invalid(req.Kind, "test kind must be short, extended or conveyance, got %q", req.TestKind)
		}

	default:
		return invalid(req.Kind, "unknown operation kind")
	}
	return nil
}
