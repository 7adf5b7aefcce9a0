package udisks

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Service constants for the storage-management service.
const (
	busName     = "org.freedesktop.UDisks2"
	managerPath = dbus.ObjectPath("/org/freedesktop/UDisks2")

	ifaceObjectManager = "org.freedesktop.DBus.ObjectManager"
	ifaceProperties    = "org.freedesktop.DBus.Properties"
	ifacePeer          = "org.freedesktop.DBus.Peer"
)

// Client wraps the shared bus connection and provides typed operations
// against the storage-management service.
type Client struct {
	conn *dbus.Conn
}

var (
	sharedMu   sync.Mutex
	shared     *Client
	sharedRefs int
)

// Acquire returns the process-wide client, establishing the bus connection
// on first use. Every successful Acquire must be paired with Release.
//
// If address is empty the system bus is used; otherwise the connection dials
// the given bus address (useful against a session-scoped test bus).
func Acquire(address string) (*Client, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		sharedRefs++
		return shared, nil
	}

	conn, err := connect(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage service bus: %w", err)
	}

	shared = &Client{conn: conn}
	sharedRefs = 1
	return shared, nil
}

func connect(address string) (*dbus.Conn, error) {
	var conn *dbus.Conn
	var err error
	if address == "" {
		conn, err = dbus.SystemBusPrivate()
	} else {
		conn, err = dbus.Dial(address)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bus authentication failed: %w", err)
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bus hello failed: %w", err)
	}
	return conn, nil
}

// Release drops one reference. The bus connection is closed when the last
// reference is released. It is safe to call Release on an already released
// client; the call is then a no-op.
func (c *Client) Release() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != c || sharedRefs == 0 {
		return nil
	}

	sharedRefs--
	if sharedRefs > 0 {
		return nil
	}

	shared = nil
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close bus connection: %w", err)
	}
	return nil
}

// Ping verifies the service is reachable on the bus.
func (c *Client) Ping() error {
	if c.conn == nil {
		return fmt.Errorf("client not connected")
	}

	call := c.conn.Object(busName, managerPath).Call(ifacePeer+".Ping", 0)
	if call.Err != nil {
		return fmt.Errorf("storage service unreachable: %w", call.Err)
	}
	return nil
}
