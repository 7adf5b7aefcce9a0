package udisks

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// RawEvent is one structural change reported by the service: an object
// appeared or disappeared.
type RawEvent struct {
	Added bool
	Path  string
}

// WatchObjects subscribes to the service's structural change signals and
// returns a channel of raw events plus a cancel function. The channel is
// closed when the bus connection drops or cancel is called; no polling of
// any kind backs it.
func (c *Client) WatchObjects() (<-chan RawEvent, func(), error) {
	matches := []dbus.MatchOption{
		dbus.WithMatchObjectPath(managerPath),
		dbus.WithMatchInterface(ifaceObjectManager),
	}
	if err := c.conn.AddMatchSignal(matches...); err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to change signals: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)

	// The bus library closes signal channels itself when the connection
	// terminates, so cancellation goes through a separate quit channel to
	// avoid a double close.
	quit := make(chan struct{})
	events := make(chan RawEvent, 16)
	go func() {
		defer close(events)
		for {
			select {
			case <-quit:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				ev, ok := translateSignal(sig)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-quit:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = c.conn.RemoveMatchSignal(matches...)
			c.conn.RemoveSignal(signals)
			close(quit)
		})
	}
	return events, cancel, nil
}

func translateSignal(sig *dbus.Signal) (RawEvent, bool) {
	if sig == nil || len(sig.Body) == 0 {
		return RawEvent{}, false
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return RawEvent{}, false
	}

	switch sig.Name {
	case ifaceObjectManager + ".InterfacesAdded":
		return RawEvent{Added: true, Path: string(path)}, true
	case ifaceObjectManager + ".InterfacesRemoved":
		return RawEvent{Added: false, Path: string(path)}, true
	default:
		return RawEvent{}, false
	}
}
