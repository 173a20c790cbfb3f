package trayitem

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
)

const (
	StatusNotifierItemInterface                 = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      dbus.ObjectPath = "/StatusNotifierItem"

	// MenuBarPath is the object path under which an attached menu is
	// exported.
	MenuBarPath dbus.ObjectPath = "/MenuBar"
)

const propertiesChangedSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"

type ItemCategory string

// StatusNotifierItem categories.
const (
	// The item describes the status of a generic application, for instance the
	// current state of a media player.
	ItemCategoryApplicationStatus ItemCategory = "ApplicationStatus"

	// The item describes the status of communication oriented applications, like
	// an instant messenger or an email client.
	ItemCategoryCommunications ItemCategory = "Communications"

	// The item describes services of the system not seen as a stand alone
	// application by the user, such as an indicator for the activity of a disk
	// indexing service.
	ItemCategorySystemServices ItemCategory = "SystemServices"

	// The item describes the state and control of a particular hardware, such as
	// an indicator of the battery charge or sound card volume control.
	ItemCategoryHardware ItemCategory = "Hardware"
)

type ItemStatus string

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user, it can be
	// considered an "idle" status and is likely that visualizations will choose
	// to hide it.
	ItemStatusPassive ItemStatus = "Passive"

	// The item is active, is more important that the item will be shown in some
	// way to the user.
	ItemStatusActive ItemStatus = "Active"

	// The item carries really important information for the user, such as battery
	// charge running out and is wants to incentive the direct user intervention.
	// Visualizations should emphasize in some way the items with NeedsAttention
	// status.
	ItemStatusNeedsAttention ItemStatus = "NeedsAttention"
)

type ScrollOrientation string

// Orientations of a scroll event.
const (
	ScrollVertical   ScrollOrientation = "vertical"
	ScrollHorizontal ScrollOrientation = "horizontal"
)

// serviceCounter makes service names unique within the process. Combined
// with the pid, the resulting name is unique on the bus.
var serviceCounter atomic.Uint64

// tooltip is the wire representation of the ToolTip property: (sa(iiay)ss).
type tooltip struct {
	IconName   string
	IconPixmap []Pixmap
	Title      string
	Body       string
}

// Item is one published tray item. It owns a private session bus connection
// on which it exposes the org.kde.StatusNotifierItem object, and, while a
// menu is attached, the com.canonical.dbusmenu object.
//
// All methods may be called from any goroutine: the item's state lives on
// the engine worker and every operation is marshaled onto it.
type Item struct {
	engine *Engine
	log    zerolog.Logger
	bus    busConn

	id      string
	service string
	signals chan *dbus.Signal
	closed  bool

	title    string
	status   ItemStatus
	category ItemCategory

	iconName            string
	iconPixmap          []Pixmap
	overlayIconName     string
	overlayIconPixmap   []Pixmap
	attentionIconName   string
	attentionIconPixmap []Pixmap
	attentionMovieName  string

	tooltipTitle      string
	tooltipBody       string
	tooltipIconName   string
	tooltipIconPixmap []Pixmap

	menuPath dbus.ObjectPath
	menu     *Menu

	onActivate          func(x, y int)
	onSecondaryActivate func(x, y int)
	onScroll            func(delta int, orientation ScrollOrientation)
}

type ItemOption func(*Item)

// WithCategory sets the category of the item. The default is
// [ItemCategoryApplicationStatus].
func WithCategory(category ItemCategory) ItemOption {
	return func(item *Item) { item.category = category }
}

// WithItemLogger sets the logger used for registration and lifecycle
// events. By default nothing is logged.
func WithItemLogger(log zerolog.Logger) ItemOption {
	return func(item *Item) { item.log = log }
}

// withConn injects a bus connection instead of dialing the session bus.
// Used by tests.
func withConn(bus busConn) ItemOption {
	return func(item *Item) { item.bus = bus }
}

// NewItem publishes a new tray item with the given id on the session bus
// and registers it with the StatusNotifierWatcher. The engine must be
// started. On failure no partial item is left behind.
func NewItem(engine *Engine, id string, opts ...ItemOption) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty item id", ErrInvalidArgument)
	}

	item := &Item{
		engine:   engine,
		log:      zerolog.Nop(),
		id:       id,
		status:   ItemStatusActive,
		category: ItemCategoryApplicationStatus,
		signals:  make(chan *dbus.Signal, 64),
	}

	for _, opt := range opts {
		opt(item)
	}

	if err := engine.RunSync(item.register); err != nil {
		return nil, err
	}

	return item, nil
}

// register publishes the item object. Runs on the engine worker.
func (item *Item) register() error {
	if item.bus == nil {
		conn, err := connectSessionBus()
		if err != nil {
			return fmt.Errorf("%w: session bus: %v", ErrBusRegistration, err)
		}
		item.bus = conn
	}

	item.service = fmt.Sprintf("org.freedesktop.StatusNotifierItem-%d-%d", os.Getpid(), serviceCounter.Add(1))

	reply, err := item.bus.RequestName(item.service, dbus.NameFlagDoNotQueue)
	if err != nil {
		item.bus.Close()
		return fmt.Errorf("%w: failed to request name %s: %v", ErrBusRegistration, item.service, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		item.bus.Close()
		return fmt.Errorf("%w: name %s already taken", ErrBusRegistration, item.service)
	}

	if err := item.bus.Export(&itemHandler{item: item}, StatusNotifierItemPath, StatusNotifierItemInterface); err != nil {
		item.bus.Close()
		return fmt.Errorf("%w: failed to export %s: %v", ErrBusRegistration, StatusNotifierItemInterface, err)
	}
	if err := item.bus.Export(&itemProperties{item: item}, StatusNotifierItemPath, "org.freedesktop.DBus.Properties"); err != nil {
		item.bus.Close()
		return fmt.Errorf("%w: failed to export properties: %v", ErrBusRegistration, err)
	}
	if err := item.bus.Export(introspect.Introspectable(itemIntrospectionXML), StatusNotifierItemPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		item.bus.Close()
		return fmt.Errorf("%w: failed to export introspection data: %v", ErrBusRegistration, err)
	}

	item.menuPath = noMenuPath()

	// Watch the watcher service for owner changes so the item can
	// re-register itself after a host restart.
	item.bus.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, StatusNotifierWatcherInterface),
	)
	item.bus.Signal(item.signals)
	go item.watchOwner()

	item.registerToHost()
	item.engine.retain()

	return nil
}

// registerToHost issues the registration handshake. The call is
// deliberately fire-and-forget: the item is considered registered as soon
// as the call is sent, no acknowledgment is awaited.
func (item *Item) registerToHost() {
	watcher := item.bus.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)
	watcher.Go(
		StatusNotifierWatcherInterface+".RegisterStatusNotifierItem",
		dbus.FlagNoReplyExpected,
		nil,
		item.uniqueName(),
	)

	item.log.Debug().
		Str("service", item.service).
		Msg("sent registration to status notifier watcher")
}

// uniqueName returns the unique bus name of the item's connection. The
// watcher is registered with this name rather than the well-known service
// name, matching how hosts track item lifetimes.
func (item *Item) uniqueName() string {
	names := item.bus.Names()
	if len(names) > 0 {
		return names[0]
	}

	return item.service
}

// watchOwner pumps NameOwnerChanged signals for the watcher service and
// re-issues the registration handshake whenever a new owner appears. Exits
// when the signal channel is closed on teardown.
func (item *Item) watchOwner() {
	for signal := range item.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}

		name, ok := signal.Body[0].(string)
		if !ok || name != StatusNotifierWatcherInterface {
			continue
		}

		newOwner, ok := signal.Body[2].(string)
		if !ok || newOwner == "" {
			continue
		}

		item.log.Debug().Str("owner", newOwner).Msg("status notifier watcher restarted")
		item.engine.RunAsync(func() {
			if !item.closed {
				item.registerToHost()
			}
		})
	}
}

// noMenuPath chooses the object path advertised when no menu is attached.
// KDE/Plasma sessions expect a reserved placeholder, everywhere else the
// bus root path is used. The environment is sampled on every transition to
// the no-menu state.
func noMenuPath() dbus.ObjectPath {
	xdg := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	session := strings.ToLower(os.Getenv("DESKTOP_SESSION"))
	_, kdeFull := os.LookupEnv("KDE_FULL_SESSION")

	if kdeFull ||
		strings.Contains(xdg, "kde") || strings.Contains(xdg, "plasma") ||
		strings.Contains(session, "kde") || strings.Contains(session, "plasma") {
		return "/NO_DBUSMENU"
	}

	return "/"
}

// ID returns the immutable identifier of the item.
func (item *Item) ID() string {
	return item.id
}

// Service returns the session-unique bus name the item was published under.
func (item *Item) Service() string {
	return item.service
}

// Title returns the current title.
func (item *Item) Title() string {
	var title string
	item.engine.RunSync(func() error {
		title = item.title
		return nil
	})

	return title
}

// Status returns the current status.
func (item *Item) Status() ItemStatus {
	var status ItemStatus
	item.engine.RunSync(func() error {
		status = item.status
		return nil
	})

	return status
}

// MenuPath returns the object path currently advertised in the Menu
// property.
func (item *Item) MenuPath() dbus.ObjectPath {
	var path dbus.ObjectPath
	item.engine.RunSync(func() error {
		path = item.menuPath
		return nil
	})

	return path
}

// emit sends a StatusNotifierItem signal from the item object.
func (item *Item) emit(member string, values ...any) error {
	return item.bus.Emit(StatusNotifierItemPath, StatusNotifierItemInterface+"."+member, values...)
}

// SetTitle sets the name that describes the item. Setting the current
// value again is a no-op and emits nothing.
func (item *Item) SetTitle(title string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.title == title {
			return nil
		}

		item.title = title

		return item.emit("NewTitle")
	})
}

// SetStatus sets the status of the item.
func (item *Item) SetStatus(status ItemStatus) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.status == status {
			return nil
		}

		item.status = status

		return item.emit("NewStatus", string(status))
	})
}

// SetCategory sets the category of the item. The protocol defines no
// change signal for it; hosts pick it up on the next property read.
func (item *Item) SetCategory(category ItemCategory) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}

		item.category = category

		return nil
	})
}

// SetIconName sets the icon by Freedesktop icon name, clearing any pixmap
// icon previously set.
func (item *Item) SetIconName(name string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.iconName == name && len(item.iconPixmap) == 0 {
			return nil
		}

		item.iconName = name
		item.iconPixmap = nil

		return item.emit("NewIcon")
	})
}

// SetIcon sets the icon from a bitmap source, clearing any icon name
// previously set.
func (item *Item) SetIcon(icon Icon) error {
	if icon == nil {
		return fmt.Errorf("%w: nil icon", ErrInvalidArgument)
	}
	pixmaps := PixmapList(icon)

	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.iconName == "" && pixmapsEqual(item.iconPixmap, pixmaps) {
			return nil
		}

		item.iconPixmap = pixmaps
		item.iconName = ""

		return item.emit("NewIcon")
	})
}

// SetOverlayIconName sets the overlay icon by Freedesktop icon name.
func (item *Item) SetOverlayIconName(name string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.overlayIconName == name && len(item.overlayIconPixmap) == 0 {
			return nil
		}

		item.overlayIconName = name
		item.overlayIconPixmap = nil

		return item.emit("NewOverlayIcon")
	})
}

// SetOverlayIcon sets the overlay icon from a bitmap source.
func (item *Item) SetOverlayIcon(icon Icon) error {
	if icon == nil {
		return fmt.Errorf("%w: nil icon", ErrInvalidArgument)
	}
	pixmaps := PixmapList(icon)

	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.overlayIconName == "" && pixmapsEqual(item.overlayIconPixmap, pixmaps) {
			return nil
		}

		item.overlayIconPixmap = pixmaps
		item.overlayIconName = ""

		return item.emit("NewOverlayIcon")
	})
}

// SetAttentionIconName sets the attention icon by Freedesktop icon name.
func (item *Item) SetAttentionIconName(name string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.attentionIconName == name && len(item.attentionIconPixmap) == 0 {
			return nil
		}

		item.attentionIconName = name
		item.attentionIconPixmap = nil

		return item.emit("NewAttentionIcon")
	})
}

// SetAttentionIcon sets the attention icon from a bitmap source.
func (item *Item) SetAttentionIcon(icon Icon) error {
	if icon == nil {
		return fmt.Errorf("%w: nil icon", ErrInvalidArgument)
	}
	pixmaps := PixmapList(icon)

	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.attentionIconName == "" && pixmapsEqual(item.attentionIconPixmap, pixmaps) {
			return nil
		}

		item.attentionIconPixmap = pixmaps
		item.attentionIconName = ""

		return item.emit("NewAttentionIcon")
	})
}

// SetAttentionMovieName sets the attention animation, either a
// Freedesktop-compliant icon name or a full path.
func (item *Item) SetAttentionMovieName(name string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.attentionMovieName == name {
			return nil
		}

		item.attentionMovieName = name

		return item.emit("NewAttentionIcon")
	})
}

// SetTooltipTitle sets the tooltip title.
func (item *Item) SetTooltipTitle(title string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.tooltipTitle == title {
			return nil
		}

		item.tooltipTitle = title

		return item.emit("NewToolTip")
	})
}

// SetTooltipBody sets the descriptive tooltip text shown under the title.
func (item *Item) SetTooltipBody(body string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.tooltipBody == body {
			return nil
		}

		item.tooltipBody = body

		return item.emit("NewToolTip")
	})
}

// SetTooltipIconName sets the tooltip icon by Freedesktop icon name.
func (item *Item) SetTooltipIconName(name string) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.tooltipIconName == name && len(item.tooltipIconPixmap) == 0 {
			return nil
		}

		item.tooltipIconName = name
		item.tooltipIconPixmap = nil

		return item.emit("NewToolTip")
	})
}

// SetTooltipIcon sets the tooltip icon from a bitmap source.
func (item *Item) SetTooltipIcon(icon Icon) error {
	if icon == nil {
		return fmt.Errorf("%w: nil icon", ErrInvalidArgument)
	}
	pixmaps := PixmapList(icon)

	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.tooltipIconName == "" && pixmapsEqual(item.tooltipIconPixmap, pixmaps) {
			return nil
		}

		item.tooltipIconPixmap = pixmaps
		item.tooltipIconName = ""

		return item.emit("NewToolTip")
	})
}

// setMenuPath updates the Menu property and announces the change. Hosts
// discover the menu path through the standard properties interface, so the
// change goes out as PropertiesChanged instead of a NewMenu-style member.
func (item *Item) setMenuPath(path dbus.ObjectPath) error {
	if item.menuPath == path {
		return nil
	}

	item.menuPath = path

	changed := map[string]dbus.Variant{"Menu": dbus.MakeVariant(path)}

	return item.bus.Emit(
		StatusNotifierItemPath,
		propertiesChangedSignal,
		StatusNotifierItemInterface, changed, []string{},
	)
}

// SetContextMenu attaches menu to the item, exporting it on the bus under
// [MenuBarPath]. A nil menu detaches the current one and reverts the Menu
// property to the no-menu placeholder. If the attached menu is destroyed by
// its owner, the item detaches automatically.
func (item *Item) SetContextMenu(menu *Menu) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}
		if item.menu == menu {
			return nil
		}

		if item.menu != nil {
			item.menu.removeDestroyObserver(item)
			item.menu.unexport()
		}

		item.menu = menu
		if menu == nil {
			return item.setMenuPath(noMenuPath())
		}

		if err := menu.export(item.bus); err != nil {
			item.menu = nil
			item.setMenuPath(noMenuPath())
			return err
		}
		menu.addDestroyObserver(item, item.onMenuDestroyed)

		return item.setMenuPath(MenuBarPath)
	})
}

// onMenuDestroyed runs on the worker when the attached menu is destroyed by
// its owner rather than detached through SetContextMenu.
func (item *Item) onMenuDestroyed() {
	item.menu = nil
	item.setMenuPath(noMenuPath())
}

// OnActivate registers the handler for activation requests (typically a
// mouse left click on the item). The handler runs on the engine worker.
func (item *Item) OnActivate(fn func(x, y int)) error {
	return item.engine.RunSync(func() error {
		item.onActivate = fn
		return nil
	})
}

// OnSecondaryActivate registers the handler for secondary activation
// requests (typically a mouse middle click). The handler runs on the
// engine worker.
func (item *Item) OnSecondaryActivate(fn func(x, y int)) error {
	return item.engine.RunSync(func() error {
		item.onSecondaryActivate = fn
		return nil
	})
}

// OnScroll registers the handler for scroll events on the item. The
// handler runs on the engine worker.
func (item *Item) OnScroll(fn func(delta int, orientation ScrollOrientation)) error {
	return item.engine.RunSync(func() error {
		item.onScroll = fn
		return nil
	})
}

// resetAttention drops NeedsAttention back to Active before an inbound
// action is dispatched, announcing the status change.
func (item *Item) resetAttention() {
	if item.status != ItemStatusNeedsAttention {
		return
	}

	item.status = ItemStatusActive
	item.emit("NewStatus", string(item.status))
}

func (item *Item) dispatchActivate(x, y int) {
	item.resetAttention()
	if item.onActivate != nil {
		item.onActivate(x, y)
	}
}

func (item *Item) dispatchSecondaryActivate(x, y int) {
	item.resetAttention()
	if item.onSecondaryActivate != nil {
		item.onSecondaryActivate(x, y)
	}
}

func (item *Item) dispatchScroll(delta int, orientation string) {
	item.resetAttention()

	orient := ScrollVertical
	if strings.EqualFold(orientation, string(ScrollHorizontal)) {
		orient = ScrollHorizontal
	}

	if item.onScroll != nil {
		item.onScroll(delta, orient)
	}
}

func (item *Item) dispatchContextMenu(x, y int) {
	item.resetAttention()
	if item.menu == nil {
		return
	}

	item.menu.toggle(x, y)
}

// ForceUpdate re-emits the icon, tooltip, and status notifications without
// changing any value. Some hosts lose track of items and need a full
// refresh.
func (item *Item) ForceUpdate() error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}

		item.emit("NewIcon")
		item.emit("NewToolTip")

		return item.emit("NewStatus", string(item.status))
	})
}

// ShowMessage fires a transient desktop notification through the
// org.freedesktop.Notifications service. Best-effort: failures are not
// reported.
func (item *Item) ShowMessage(title, body, iconName string, timeout time.Duration) error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return ErrItemClosed
		}

		notify(item.bus, item.title, iconName, title, body, timeout)

		return nil
	})
}

// Close unregisters the item from the bus and disconnects its private
// connection. The item cannot be reused afterwards. Closing the last item
// of an engine schedules the engine's own shutdown.
func (item *Item) Close() error {
	return item.engine.RunSync(func() error {
		if item.closed {
			return nil
		}
		item.closed = true

		if item.menu != nil {
			item.menu.removeDestroyObserver(item)
			item.menu.unexport()
			item.menu = nil
		}

		item.bus.RemoveMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, StatusNotifierWatcherInterface),
		)
		item.bus.RemoveSignal(item.signals)
		close(item.signals)

		item.bus.ReleaseName(item.service)
		err := item.bus.Close()

		item.engine.release()
		item.log.Debug().Str("service", item.service).Msg("item closed")

		return err
	})
}

// properties builds the current wire property map. Runs on the worker.
func (item *Item) properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Id":                  dbus.MakeVariant(item.id),
		"Category":            dbus.MakeVariant(string(item.category)),
		"Status":              dbus.MakeVariant(string(item.status)),
		"Title":               dbus.MakeVariant(item.title),
		"WindowId":            dbus.MakeVariant(uint32(0)),
		"ItemIsMenu":          dbus.MakeVariant(false),
		"IconName":            dbus.MakeVariant(item.iconName),
		"IconPixmap":          dbus.MakeVariant(pixmapsOrEmpty(item.iconPixmap)),
		"OverlayIconName":     dbus.MakeVariant(item.overlayIconName),
		"OverlayIconPixmap":   dbus.MakeVariant(pixmapsOrEmpty(item.overlayIconPixmap)),
		"AttentionIconName":   dbus.MakeVariant(item.attentionIconName),
		"AttentionIconPixmap": dbus.MakeVariant(pixmapsOrEmpty(item.attentionIconPixmap)),
		"AttentionMovieName":  dbus.MakeVariant(item.attentionMovieName),
		"ToolTip": dbus.MakeVariant(tooltip{
			IconName:   item.tooltipIconName,
			IconPixmap: pixmapsOrEmpty(item.tooltipIconPixmap),
			Title:      item.tooltipTitle,
			Body:       item.tooltipBody,
		}),
		"Menu": dbus.MakeVariant(item.menuPath),
	}
}

func pixmapsOrEmpty(pixmaps []Pixmap) []Pixmap {
	if pixmaps == nil {
		return []Pixmap{}
	}

	return pixmaps
}

// itemHandler is the bus-facing method set of the item. Calls arrive on the
// connection's dispatch goroutine and are marshaled onto the engine before
// touching any state.
type itemHandler struct {
	item *Item
}

func (h *itemHandler) Activate(x, y int32) *dbus.Error {
	h.item.engine.RunSync(func() error {
		h.item.dispatchActivate(int(x), int(y))
		return nil
	})

	return nil
}

func (h *itemHandler) SecondaryActivate(x, y int32) *dbus.Error {
	h.item.engine.RunSync(func() error {
		h.item.dispatchSecondaryActivate(int(x), int(y))
		return nil
	})

	return nil
}

func (h *itemHandler) ContextMenu(x, y int32) *dbus.Error {
	h.item.engine.RunSync(func() error {
		h.item.dispatchContextMenu(int(x), int(y))
		return nil
	})

	return nil
}

func (h *itemHandler) Scroll(delta int32, orientation string) *dbus.Error {
	h.item.engine.RunSync(func() error {
		h.item.dispatchScroll(int(delta), orientation)
		return nil
	})

	return nil
}

// itemProperties implements org.freedesktop.DBus.Properties for the item
// object. Reads are marshaled onto the engine because the property set is
// owned by the worker.
type itemProperties struct {
	item *Item
}

func (p *itemProperties) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	if iface != StatusNotifierItemInterface {
		return dbus.Variant{}, prop.ErrIfaceNotFound
	}

	var value dbus.Variant
	var found bool
	p.item.engine.RunSync(func() error {
		value, found = p.item.properties()[property]
		return nil
	})

	if !found {
		return dbus.Variant{}, prop.ErrPropNotFound
	}

	return value, nil
}

func (p *itemProperties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != StatusNotifierItemInterface {
		return nil, prop.ErrIfaceNotFound
	}

	var props map[string]dbus.Variant
	p.item.engine.RunSync(func() error {
		props = p.item.properties()
		return nil
	})

	return props, nil
}

func (p *itemProperties) Set(iface, property string, value dbus.Variant) *dbus.Error {
	if iface != StatusNotifierItemInterface {
		return prop.ErrIfaceNotFound
	}

	return prop.ErrReadOnly
}
