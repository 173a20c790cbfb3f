package trayitem

import "github.com/godbus/dbus/v5"

// busConn is the slice of [dbus.Conn] that items, menus, and the embedded
// watcher use. Tests substitute a fake implementation to observe exported
// objects and emitted signals without a running session bus.
type busConn interface {
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	Export(v any, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...any) error
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Names() []string
	Close() error
}

// connectSessionBus opens a private connection to the session bus. Every
// item owns its own connection so that it can request a session-unique
// service name and disconnect independently of other items in the process.
func connectSessionBus() (busConn, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}

	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}
