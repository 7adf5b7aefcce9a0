package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/jbweber/blockyard/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"deadline", context.DeadlineExceeded, ClassTimedOut},
		{"cancelled context", context.Canceled, ClassCancelled},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ClassTimedOut},
		{"plain transport", fmt.Errorf("write unix: broken pipe"), ClassTransientTransport},
		{"no reply", dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}, ClassTimedOut},
		{"unknown method", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}, ClassUnsupported},
		{"service gone", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, ClassTransientTransport},
		{"not authorized", dbus.Error{Name: "org.freedesktop.UDisks2.Error.NotAuthorized"}, ClassAuthenticationFailed},
		{"not authorized variant", dbus.Error{Name: "org.freedesktop.UDisks2.Error.NotAuthorizedCanObtain"}, ClassAuthenticationFailed},
		{"service cancelled", dbus.Error{Name: "org.freedesktop.UDisks2.Error.Cancelled"}, ClassCancelled},
		{"generic failure", dbus.Error{Name: "org.freedesktop.UDisks2.Error.Failed"}, ClassRemoteOperationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(model.OpMount, tt.err, nil)
			if got.Class != tt.want {
				t.Errorf("class = %s, want %s", got.Class, tt.want)
			}
		})
	}
}

func TestClassifyPreservesRemoteName(t *testing.T) {
	derr := dbus.Error{
		Name: "org.freedesktop.UDisks2.Error.Failed",
		Body: []interface{}{"mkfs exited with 1"},
	}
	got := classify(model.OpFormat, derr, nil)
	if got.Name != derr.Name {
		t.Errorf("name = %q, want %q", got.Name, derr.Name)
	}
	if got.Message != "mkfs exited with 1" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestScrub(t *testing.T) {
	got := scrub("passphrase hunter2 rejected, retried with hunter2", []string{"hunter2", ""})
	want := "passphrase [redacted] rejected, retried with [redacted]"
	if got != want {
		t.Errorf("scrub = %q, want %q", got, want)
	}
}
