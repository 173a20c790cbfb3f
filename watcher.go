package trayitem

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
)

const (
	StatusNotifierWatcherInterface                 = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      dbus.ObjectPath = "/StatusNotifierWatcher"
)

// Watcher is a minimal org.kde.StatusNotifierWatcher service. Desktop
// shells normally provide one; this implementation backs tests and
// environments without a shell watcher. One watcher must be present on a
// bus at a time.
type Watcher struct {
	conn    *dbus.Conn
	log     zerolog.Logger
	signals chan *dbus.Signal

	mu     sync.Mutex
	closed bool
	hosts  map[string]struct{}

	// items maps the bus name whose lifetime is watched to the identifier
	// advertised to hosts ("<name>/<path>").
	items map[string]string
}

type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for registration events. By default
// nothing is logged.
func WithWatcherLogger(log zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// NewWatcher returns a new [Watcher] on conn. It does not own the
// connection.
func NewWatcher(conn *dbus.Conn, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		conn:    conn,
		log:     zerolog.Nop(),
		signals: make(chan *dbus.Signal, 64),
		hosts:   make(map[string]struct{}),
		items:   make(map[string]string),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Listen claims the well-known watcher name on the bus, exports the
// watcher object, and starts tracking registrations.
func (w *Watcher) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("listen: watcher is closed")
	}

	reply, err := w.conn.RequestName(StatusNotifierWatcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", StatusNotifierWatcherInterface, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", StatusNotifierWatcherInterface)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", StatusNotifierWatcherInterface, err)
	}

	w.exportProperties()

	w.conn.Signal(w.signals)
	go w.watchOwners()

	return nil
}

// Close releases the watcher name and stops tracking registrations. The
// watcher cannot be reused afterwards.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if _, err := w.conn.ReleaseName(StatusNotifierWatcherInterface); err != nil {
		return err
	}

	for name := range w.items {
		w.unwatchName(name)
	}
	for name := range w.hosts {
		w.unwatchName(name)
	}

	w.conn.RemoveSignal(w.signals)
	close(w.signals)
	w.closed = true

	return nil
}

// RegisterStatusNotifierItem registers a tray item. The name argument is
// either a bus name or an object path; in the latter case the item is
// identified through the caller's unique name, as the protocol specifies.
func (w *Watcher) RegisterStatusNotifierItem(name string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	watched := name
	identifier := name + string(StatusNotifierItemPath)
	if strings.HasPrefix(name, "/") {
		watched = string(sender)
		identifier = string(sender) + name
	}

	if _, exists := w.items[watched]; exists {
		return nil
	}
	w.items[watched] = identifier

	w.watchName(watched)
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemRegistered", identifier)
	w.exportProperties()

	w.log.Debug().Str("item", identifier).Msg("status notifier item registered")

	return nil
}

// RegisterStatusNotifierHost registers a tray host.
func (w *Watcher) RegisterStatusNotifierHost(name string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.hosts[name]; exists {
		return nil
	}
	w.hosts[name] = struct{}{}

	w.watchName(name)
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierHostRegistered", name)
	w.exportProperties()

	w.log.Debug().Str("host", name).Msg("status notifier host registered")

	return nil
}

// watchName subscribes to owner changes of name. Whenever the name
// disappears from the bus, D-Bus sends NameOwnerChanged with an empty new
// owner and the entry is dropped.
func (w *Watcher) watchName(name string) {
	w.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

func (w *Watcher) unwatchName(name string) {
	w.conn.RemoveMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

// watchOwners drops hosts and items whose bus names vanished. Exits when
// the signal channel is closed by [Watcher.Close].
func (w *Watcher) watchOwners() {
	for signal := range w.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}

		name, ok := signal.Body[0].(string)
		if !ok {
			continue
		}

		newOwner, ok := signal.Body[2].(string)
		if !ok || newOwner != "" {
			continue
		}

		w.dropName(name)
	}
}

func (w *Watcher) dropName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if _, exists := w.hosts[name]; exists {
		delete(w.hosts, name)
		w.unwatchName(name)
		w.exportProperties()

		w.log.Debug().Str("host", name).Msg("status notifier host unregistered")
	}

	identifier, exists := w.items[name]
	if !exists {
		return
	}

	delete(w.items, name)
	w.unwatchName(name)
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemUnregistered", identifier)
	w.exportProperties()

	w.log.Debug().Str("item", identifier).Msg("status notifier item unregistered")
}

func (w *Watcher) exportProperties() {
	items := make([]string, 0, len(w.items))
	for _, identifier := range w.items {
		items = append(items, identifier)
	}

	prop.Export(w.conn, StatusNotifierWatcherPath, prop.Map{
		StatusNotifierWatcherInterface: map[string]*prop.Prop{
			"RegisteredStatusNotifierItems": {
				Value:    items,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"IsStatusNotifierHostRegistered": {
				Value:    len(w.hosts) > 0,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"ProtocolVersion": {
				Value:    1,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	})
}
