package trayitem

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

// sessionBusOrSkip dials a private session bus connection, skipping the
// test in environments without one.
func sessionBusOrSkip(t *testing.T) *dbus.Conn {
	t.Helper()

	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		t.Skipf("session bus unavailable: %v", err)
	}
	if err = conn.Auth(nil); err != nil {
		conn.Close()
		t.Skipf("session bus auth failed: %v", err)
	}
	if err = conn.Hello(); err != nil {
		conn.Close()
		t.Skipf("session bus hello failed: %v", err)
	}

	t.Cleanup(func() { conn.Close() })

	return conn
}

func listenOrSkip(t *testing.T, conn *dbus.Conn) *Watcher {
	t.Helper()

	w := NewWatcher(conn)
	if err := w.Listen(); err != nil {
		t.Skipf("watcher name unavailable: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	return w
}

func TestWatcherRegisterItem(t *testing.T) {
	conn := sessionBusOrSkip(t)
	w := listenOrSkip(t, conn)

	require.Nil(t, w.RegisterStatusNotifierItem(":1.901", dbus.Sender(":1.901")))

	w.mu.Lock()
	identifier := w.items[":1.901"]
	w.mu.Unlock()
	require.Equal(t, ":1.901/StatusNotifierItem", identifier)

	var items []string
	obj := conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)
	require.NoError(t, obj.StoreProperty(StatusNotifierWatcherInterface+".RegisteredStatusNotifierItems", &items))
	require.Contains(t, items, ":1.901/StatusNotifierItem")
}

func TestWatcherRegisterItemByPath(t *testing.T) {
	conn := sessionBusOrSkip(t)
	w := listenOrSkip(t, conn)

	// A path-style registration is identified through the caller's unique
	// name.
	require.Nil(t, w.RegisterStatusNotifierItem("/StatusNotifierItem", dbus.Sender(":1.902")))

	w.mu.Lock()
	identifier := w.items[":1.902"]
	w.mu.Unlock()
	require.Equal(t, ":1.902/StatusNotifierItem", identifier)
}

func TestWatcherRegisterItemIdempotent(t *testing.T) {
	conn := sessionBusOrSkip(t)
	w := listenOrSkip(t, conn)

	require.Nil(t, w.RegisterStatusNotifierItem(":1.903", dbus.Sender(":1.903")))
	require.Nil(t, w.RegisterStatusNotifierItem(":1.903", dbus.Sender(":1.903")))

	w.mu.Lock()
	count := len(w.items)
	w.mu.Unlock()
	require.Equal(t, 1, count)
}

func TestWatcherRegisterHost(t *testing.T) {
	conn := sessionBusOrSkip(t)
	w := listenOrSkip(t, conn)

	var registered bool
	obj := conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)
	require.NoError(t, obj.StoreProperty(StatusNotifierWatcherInterface+".IsStatusNotifierHostRegistered", &registered))
	require.False(t, registered)

	require.Nil(t, w.RegisterStatusNotifierHost(":1.904"))

	require.NoError(t, obj.StoreProperty(StatusNotifierWatcherInterface+".IsStatusNotifierHostRegistered", &registered))
	require.True(t, registered)
}

func TestWatcherItemRoundTrip(t *testing.T) {
	conn := sessionBusOrSkip(t)
	listenOrSkip(t, conn)

	e := newTestEngine(t)

	item, err := NewItem(e, "round-trip")
	if err != nil {
		t.Skipf("item registration failed: %v", err)
	}
	t.Cleanup(func() { item.Close() })

	require.NotEmpty(t, item.Service())
	require.Equal(t, "round-trip", item.ID())
}
