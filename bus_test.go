package trayitem

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeBus implements busConn in memory, recording exported objects,
// emitted signals, and outgoing calls.
type fakeBus struct {
	mu       sync.Mutex
	names    []string
	exports  map[exportKey]any
	signals  []emittedSignal
	calls    []recordedCall
	sigChans []chan<- *dbus.Signal
	closed   bool
}

type exportKey struct {
	Path  dbus.ObjectPath
	Iface string
}

type emittedSignal struct {
	Path   dbus.ObjectPath
	Name   string
	Values []any
}

type recordedCall struct {
	Dest   string
	Path   dbus.ObjectPath
	Method string
	Args   []any
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		names:   []string{":1.42"},
		exports: make(map[exportKey]any),
	}
}

func (b *fakeBus) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return dbus.RequestNameReplyPrimaryOwner, nil
}

func (b *fakeBus) ReleaseName(name string) (dbus.ReleaseNameReply, error) {
	return dbus.ReleaseNameReplyReleased, nil
}

func (b *fakeBus) Export(v any, path dbus.ObjectPath, iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := exportKey{Path: path, Iface: iface}
	if v == nil {
		delete(b.exports, key)
	} else {
		b.exports[key] = v
	}

	return nil
}

func (b *fakeBus) Emit(path dbus.ObjectPath, name string, values ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.signals = append(b.signals, emittedSignal{Path: path, Name: name, Values: values})

	return nil
}

func (b *fakeBus) AddMatchSignal(options ...dbus.MatchOption) error    { return nil }
func (b *fakeBus) RemoveMatchSignal(options ...dbus.MatchOption) error { return nil }

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sigChans = append(b.sigChans, ch)
}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {}

func (b *fakeBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return &fakeObject{bus: b, dest: dest, path: path}
}

func (b *fakeBus) Names() []string {
	return b.names
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

func (b *fakeBus) emitted(name string) []emittedSignal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []emittedSignal
	for _, signal := range b.signals {
		if signal.Name == name {
			out = append(out, signal)
		}
	}

	return out
}

func (b *fakeBus) exported(path dbus.ObjectPath, iface string) any {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exports[exportKey{Path: path, Iface: iface}]
}

func (b *fakeBus) recordedCalls(method string) []recordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []recordedCall
	for _, call := range b.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}

	return out
}

func (b *fakeBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// fakeObject implements dbus.BusObject, recording outgoing calls on its
// fakeBus.
type fakeObject struct {
	bus  *fakeBus
	dest string
	path dbus.ObjectPath
}

func (o *fakeObject) record(method string, args []any) *dbus.Call {
	o.bus.mu.Lock()
	defer o.bus.mu.Unlock()

	o.bus.calls = append(o.bus.calls, recordedCall{Dest: o.dest, Path: o.path, Method: method, Args: args})

	return &dbus.Call{}
}

func (o *fakeObject) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	return o.record(method, args)
}

func (o *fakeObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return o.record(method, args)
}

func (o *fakeObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return o.record(method, args)
}

func (o *fakeObject) GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return o.record(method, args)
}

func (o *fakeObject) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *fakeObject) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *fakeObject) GetProperty(p string) (dbus.Variant, error) { return dbus.Variant{}, nil }
func (o *fakeObject) StoreProperty(p string, value any) error    { return nil }
func (o *fakeObject) SetProperty(p string, v any) error          { return nil }
func (o *fakeObject) Destination() string                        { return o.dest }
func (o *fakeObject) Path() dbus.ObjectPath                      { return o.path }
