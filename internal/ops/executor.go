// Package ops validates, dispatches and classifies mutating operations
// against the storage service.
//
// Every request is validated locally first, so mistakes detectable without
// the service fail fast as validation errors instead of opaque remote
// errors. Passing requests are dispatched with a bounded timeout, short for
// metadata-level calls and long for reshaping calls like format and
// resize. On success the executor triggers a topology refresh before
// returning, so callers observe a consistent post-operation tree.
package ops

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/blockyard/internal/model"
)

// serviceCalls is the slice of the service client this package needs.
// Satisfied by *udisks.Client.
type serviceCalls interface {
	Mount(ctx context.Context, path string) (string, error)
	Unmount(ctx context.Context, path string, force bool) error
	Format(ctx context.Context, path, fstype, label, passphrase string) error
	Resize(ctx context.Context, path string, size uint64) error
	Check(ctx context.Context, path string) (bool, error)
	Repair(ctx context.Context, path string) (bool, error)
	SetLabel(ctx context.Context, path, label string) error
	CreatePartition(ctx context.Context, path string, offset, size uint64, typeID, fstype, passphrase string) (string, error)
	DeletePartition(ctx context.Context, path string) error
	SetPartitionFlags(ctx context.Context, path string, flags uint64) error
	Unlock(ctx context.Context, path, passphrase string) (string, error)
	Lock(ctx context.Context, path string) error
	ChangePassphrase(ctx context.Context, path, current, next string) error
	PowerOff(ctx context.Context, path string) error
	Standby(ctx context.Context, path string) error
	Wakeup(ctx context.Context, path string) error
	SmartSelftestStart(ctx context.Context, path, kind string) error
}

// refresher triggers the post-operation model refresh. Satisfied by
// *engine.Engine.
type refresher interface {
	Refresh(ctx context.Context) error
}

// Executor runs operations against the storage service.
type Executor struct {
	client  serviceCalls
	refresh refresher
	meta    time.Duration // Timeout for metadata-level operations
	reshape time.Duration // Timeout for format/resize-level operations
}

// NewExecutor creates an executor. Zero timeouts fall back to defaults.
func NewExecutor(client serviceCalls, refresh refresher, meta, reshape time.Duration) *Executor {
	if meta == 0 {
		meta = 30 * time.Second
	}
	if reshape == 0 {
		reshape = 15 * time.Minute
	}
	return &Executor{client: client, refresh: refresh, meta: meta, reshape: reshape}
}

// Do validates and executes one operation request, returning its
// classified result. Validation failures and unsupported operations never
// reach the service.
func (e *Executor) Do(ctx context.Context, req model.OperationRequest) model.OperationResult {
	res := model.OperationResult{
		ID:     uuid.NewString(),
		Kind:   req.Kind,
		Target: req.Target,
	}

	if verr := validate(req); verr != nil {
		res.Outcome = model.OutcomeValidation
		res.Err = verr
		return res
	}

	opCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(req.Kind))
	defer cancel()

	err := e.dispatch(opCtx, req, &res)
	if err == nil {
		res.Outcome = model.OutcomeOK
		// Close the loop: re-enumerate so callers observe the
		// post-operation topology. A failed refresh does not fail the
		// operation that already succeeded.
		if e.refresh != nil {
			if rerr := e.refresh.Refresh(ctx); rerr != nil {
				log.Printf("post-operation refresh failed: %v", rerr)
			}
		}
		return res
	}

	cerr := classify(req.Kind, err, secretsOf(req))
	if req.Kind == model.OpUnlock && cerr.Class == ClassRemoteOperationFailed {
		// The service reports a wrong passphrase as a plain remote
		// failure; transport classes were ruled out above, so reclassify.
		// The container stays locked.
		cerr.Class = ClassAuthenticationFailed
	}

	res.Err = cerr
	switch cerr.Class {
	case ClassUnsupported:
		// A capability the device lacks is a distinct outcome, not an
		// error.
		res.Outcome = model.OutcomeUnsupported
		res.Err = nil
	case ClassTimedOut:
		res.Outcome = model.OutcomeTimedOut
	default:
		res.Outcome = model.OutcomeFailed
	}
	return res
}

func (e *Executor) timeoutFor(kind model.OpKind) time.Duration {
	switch kind {
	case model.OpFormat, model.OpResize, model.OpCreatePartition, model.OpRepair:
		return e.reshape
	default:
		return e.meta
	}
}

func (e *Executor) dispatch(ctx context.Context, req model.OperationRequest, res *model.OperationResult) error {
	switch req.Kind {
	case model.OpMount:
		mountPoint, err := e.client.Mount(ctx, req.Target)
		res.Mount = mountPoint
		return err
	case model.OpUnmount:
		return e.client.Unmount(ctx, req.Target, req.Force)
	case model.OpUnlock:
		cleartext, err := e.client.Unlock(ctx, req.Target, req.Passphrase)
		res.Cleartext = cleartext
		return err
	case model.OpLock:
		return e.client.Lock(ctx, req.Target)
	case model.OpChangePassphrase:
		return e.client.ChangePassphrase(ctx, req.Target, req.Passphrase, req.NewPassphrase)
	case model.OpFormat:
		return e.client.Format(ctx, req.Target, req.FSType, req.Label, req.Passphrase)
	case model.OpResize:
		return e.client.Resize(ctx, req.Target, req.Size)
	case model.OpCheck:
		_, err := e.client.Check(ctx, req.Target)
		return err
	case model.OpRepair:
		_, err := e.client.Repair(ctx, req.Target)
		return err
	case model.OpSetLabel:
		return e.client.SetLabel(ctx, req.Target, req.Label)
	case model.OpCreatePartition:
		_, err := e.client.CreatePartition(ctx, req.Target, req.Offset, req.Size, req.TypeID, req.FSType, req.Passphrase)
		return err
	case model.OpDeletePartition:
		return e.client.DeletePartition(ctx, req.Target)
	case model.OpSetFlags:
		return e.client.SetPartitionFlags(ctx, req.Target, req.Flags)
	case model.OpPowerOff:
		return e.client.PowerOff(ctx, req.Target)
	case model.OpStandby:
		return e.client.Standby(ctx, req.Target)
	case model.OpWake:
		return e.client.Wakeup(ctx, req.Target)
	case model.OpSelfTest:
		return e.client.SmartSelftestStart(ctx, req.Target, req.TestKind)
	default:
		// validate rejects unknown kinds; this is unreachable through Do.
		return &Error{Class: ClassValidation, Op: req.Kind, Message: "unknown operation kind"}
	}
}

func secretsOf(req model.OperationRequest) []string {
	return []string{req.Passphrase, req.NewPassphrase, req.Confirm}
}
