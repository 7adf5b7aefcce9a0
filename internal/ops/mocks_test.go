package ops

import "context"

// fakeService records every call it receives and answers with canned
// values. Setting err makes every method fail with it.
type fakeService struct {
	calls     []string
	err       error
	mount     string
	cleartext string
}

func (f *fakeService) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeService) Mount(_ context.Context, path string) (string, error) {
	f.record("Mount")
	return f.mount, f.err
}

func (f *fakeService) Unmount(_ context.Context, path string, force bool) error {
	f.record("Unmount")
	return f.err
}

func (f *fakeService) Format(_ context.Context, path, fstype, label, passphrase string) error {
	f.record("Format")
	return f.err
}

func (f *fakeService) Resize(_ context.Context, path string, size uint64) error {
	f.record("Resize")
	return f.err
}

func (f *fakeService) Check(_ context.Context, path string) (bool, error) {
	f.record("Check")
	return true, f.err
}

func (f *fakeService) Repair(_ context.Context, path string) (bool, error) {
	f.record("Repair")
	return true, f.err
}

func (f *fakeService) SetLabel(_ context.Context, path, label string) error {
	f.record("SetLabel")
	return f.err
}

func (f *fakeService) CreatePartition(_ context.Context, path string, offset, size uint64, typeID, fstype, passphrase string) (string, error) {
	f.record("CreatePartition")
	return "/obj/new", f.err
}

func (f *fakeService) DeletePartition(_ context.Context, path string) error {
	f.record("DeletePartition")
	return f.err
}

func (f *fakeService) SetPartitionFlags(_ context.Context, path string, flags uint64) error {
	f.record("SetPartitionFlags")
	return f.err
}

func (f *fakeService) Unlock(_ context.Context, path, passphrase string) (string, error) {
	f.record("Unlock")
	return f.cleartext, f.err
}

func (f *fakeService) Lock(_ context.Context, path string) error {
	f.record("Lock")
	return f.err
}

func (f *fakeService) ChangePassphrase(_ context.Context, path, current, next string) error {
	f.record("ChangePassphrase")
	return f.err
}

func (f *fakeService) PowerOff(_ context.Context, path string) error {
	f.record("PowerOff")
	return f.err
}

func (f *fakeService) Standby(_ context.Context, path string) error {
	f.record("Standby")
	return f.err
}

func (f *fakeService) Wakeup(_ context.Context, path string) error {
	f.record("Wakeup")
	return f.err
}

func (f *fakeService) SmartSelftestStart(_ context.Context, path, kind string) error {
	f.record("SmartSelftestStart")
	return f.err
}

// fakeRefresher counts post-operation refreshes.
type fakeRefresher struct {
	count int
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context) error {
	f.count++
	return f.err
}
