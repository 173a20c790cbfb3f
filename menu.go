package trayitem

import (
	"fmt"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const MenuInterface = "com.canonical.dbusmenu"

// menuVersion is the com.canonical.dbusmenu interface version served in
// the Version property.
const menuVersion = uint32(3)

type menuNodeKind int

const (
	nodeAction menuNodeKind = iota
	nodeCheckable
	nodeSeparator
	nodeSubmenu
)

// MenuItem is a stable handle to one node of a [Menu]. A handle stays
// valid until the node is removed or the owning menu is destroyed;
// operations on an invalidated handle fail with [ErrStaleHandle].
type MenuItem struct {
	menu     *Menu
	id       int32
	kind     menuNodeKind
	parent   *MenuItem
	children []*MenuItem

	text     string
	enabled  bool
	checked  bool
	iconName string
	iconData []byte
	callback func()
	removed  bool
}

// Menu is a context menu tree owned by the application. While attached to
// an [Item] it is mirrored on the item's bus connection as a
// com.canonical.dbusmenu object, so hosts can render it and invoke its
// entries.
//
// All operations may be called from any goroutine: the tree lives on the
// engine worker and every mutation is marshaled onto it, so concurrent
// callers see serialized structural updates.
type Menu struct {
	engine *Engine

	root      *MenuItem
	nextID    int32
	revision  uint32
	shown     bool
	destroyed bool

	// bus is non-nil while the menu is exported on an item's connection.
	bus busConn

	observers map[*Item]func()
}

// NewMenu returns a new empty [Menu].
func NewMenu(engine *Engine) *Menu {
	m := &Menu{
		engine:    engine,
		nextID:    1,
		observers: make(map[*Item]func()),
	}
	m.root = &MenuItem{menu: m, id: 0, kind: nodeSubmenu, enabled: true}

	return m
}

// validate reports whether handle can still be operated on.
func (m *Menu) validate(handle *MenuItem) error {
	if handle == nil {
		return fmt.Errorf("%w: nil menu handle", ErrInvalidArgument)
	}
	if m.destroyed || handle.menu != m || handle.removed {
		return ErrStaleHandle
	}

	return nil
}

// container resolves parent into the node new children are appended to. A
// nil parent targets the top level of the menu.
func (m *Menu) container(parent *MenuItem) (*MenuItem, error) {
	if m.destroyed {
		return nil, ErrStaleHandle
	}
	if parent == nil {
		return m.root, nil
	}
	if err := m.validate(parent); err != nil {
		return nil, err
	}
	if parent.kind != nodeSubmenu {
		return nil, fmt.Errorf("%w: parent is not a submenu", ErrInvalidArgument)
	}

	return parent, nil
}

func (m *Menu) appendNode(parent, node *MenuItem) *MenuItem {
	node.menu = m
	node.id = m.nextID
	m.nextID++
	node.parent = parent
	parent.children = append(parent.children, node)

	m.layoutUpdated(parent.id)

	return node
}

// layoutUpdated bumps the layout revision and, while exported, announces
// the structural change under the given parent node.
func (m *Menu) layoutUpdated(parentID int32) {
	m.revision++
	if m.bus != nil {
		m.bus.Emit(MenuBarPath, MenuInterface+".LayoutUpdated", m.revision, parentID)
	}
}

// propertiesUpdated announces changed wire properties of a single node.
func (m *Menu) propertiesUpdated(id int32, props map[string]dbus.Variant) {
	if m.bus == nil {
		return
	}

	updated := []updatedProperties{{NodeID: id, Properties: props}}
	m.bus.Emit(MenuBarPath, MenuInterface+".ItemsPropertiesUpdated", updated, []removedProperties{})
}

// AddAction appends an action with the given text to parent and returns
// its handle. A nil parent targets the top level. The callback runs on the
// engine worker when a host invokes the entry.
func (m *Menu) AddAction(parent *MenuItem, text string, callback func()) (*MenuItem, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty action text", ErrInvalidArgument)
	}

	var node *MenuItem
	err := m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		node = m.appendNode(p, &MenuItem{kind: nodeAction, text: text, enabled: true, callback: callback})

		return nil
	})

	return node, err
}

// AddDisabledAction appends an action that starts out disabled.
func (m *Menu) AddDisabledAction(parent *MenuItem, text string, callback func()) (*MenuItem, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty action text", ErrInvalidArgument)
	}

	var node *MenuItem
	err := m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		node = m.appendNode(p, &MenuItem{kind: nodeAction, text: text, enabled: false, callback: callback})

		return nil
	})

	return node, err
}

// AddCheckableAction appends a checkable action. The checked state toggles
// automatically when a host invokes the entry, before the callback runs.
func (m *Menu) AddCheckableAction(parent *MenuItem, text string, checked bool, callback func()) (*MenuItem, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty action text", ErrInvalidArgument)
	}

	var node *MenuItem
	err := m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		node = m.appendNode(p, &MenuItem{kind: nodeCheckable, text: text, enabled: true, checked: checked, callback: callback})

		return nil
	})

	return node, err
}

// AddSeparator appends a separator to parent.
func (m *Menu) AddSeparator(parent *MenuItem) (*MenuItem, error) {
	var node *MenuItem
	err := m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		node = m.appendNode(p, &MenuItem{kind: nodeSeparator, enabled: true})

		return nil
	})

	return node, err
}

// AddSubmenu appends a submenu to parent. The returned handle is a valid
// parent for further Add calls.
func (m *Menu) AddSubmenu(parent *MenuItem, text string) (*MenuItem, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty submenu text", ErrInvalidArgument)
	}

	var node *MenuItem
	err := m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		node = m.appendNode(p, &MenuItem{kind: nodeSubmenu, text: text, enabled: true})

		return nil
	})

	return node, err
}

// SetText changes the label of the node.
func (m *Menu) SetText(handle *MenuItem, text string) error {
	return m.engine.RunSync(func() error {
		if err := m.validate(handle); err != nil {
			return err
		}
		if handle.text == text {
			return nil
		}

		handle.text = text
		m.propertiesUpdated(handle.id, map[string]dbus.Variant{"label": dbus.MakeVariant(text)})

		return nil
	})
}

// SetEnabled enables or disables the node.
func (m *Menu) SetEnabled(handle *MenuItem, enabled bool) error {
	return m.engine.RunSync(func() error {
		if err := m.validate(handle); err != nil {
			return err
		}
		if handle.enabled == enabled {
			return nil
		}

		handle.enabled = enabled
		m.propertiesUpdated(handle.id, map[string]dbus.Variant{"enabled": dbus.MakeVariant(enabled)})

		return nil
	})
}

// SetChecked changes the checked state of a checkable action. Calling it
// on any other node kind fails with [ErrNotCheckable] and leaves the tree
// untouched.
func (m *Menu) SetChecked(handle *MenuItem, checked bool) error {
	return m.engine.RunSync(func() error {
		if err := m.validate(handle); err != nil {
			return err
		}
		if handle.kind != nodeCheckable {
			return ErrNotCheckable
		}
		if handle.checked == checked {
			return nil
		}

		handle.checked = checked
		m.propertiesUpdated(handle.id, map[string]dbus.Variant{"toggle-state": dbus.MakeVariant(toggleState(checked))})

		return nil
	})
}

// SetIcon sets the icon of the node. The argument is resolved against the
// XDG icon theme first; when that fails it is treated as a path to an icon
// file whose contents are transmitted directly.
func (m *Menu) SetIcon(handle *MenuItem, nameOrPath string) error {
	if nameOrPath == "" {
		return fmt.Errorf("%w: empty icon name", ErrInvalidArgument)
	}

	name, data, err := resolveMenuIcon(nameOrPath)
	if err != nil {
		return err
	}

	return m.engine.RunSync(func() error {
		if err := m.validate(handle); err != nil {
			return err
		}

		handle.iconName = name
		handle.iconData = data

		props := map[string]dbus.Variant{}
		if name != "" {
			props["icon-name"] = dbus.MakeVariant(name)
		}
		if len(data) > 0 {
			props["icon-data"] = dbus.MakeVariant(data)
		}
		m.propertiesUpdated(handle.id, props)

		return nil
	})
}

// Remove detaches the node from its parent and invalidates its handle
// along with the handles of all its descendants.
func (m *Menu) Remove(handle *MenuItem) error {
	return m.engine.RunSync(func() error {
		if err := m.validate(handle); err != nil {
			return err
		}
		if handle == m.root {
			return fmt.Errorf("%w: cannot remove menu root", ErrInvalidArgument)
		}

		parent := handle.parent
		idx := slices.Index(parent.children, handle)
		if idx >= 0 {
			parent.children = slices.Delete(parent.children, idx, idx+1)
		}
		invalidateNode(handle)

		m.layoutUpdated(parent.id)

		return nil
	})
}

// Clear removes all children of parent, invalidating their handles. A nil
// parent clears the top level.
func (m *Menu) Clear(parent *MenuItem) error {
	return m.engine.RunSync(func() error {
		p, err := m.container(parent)
		if err != nil {
			return err
		}

		for _, child := range p.children {
			invalidateNode(child)
		}
		p.children = nil

		m.layoutUpdated(p.id)

		return nil
	})
}

// Destroy invalidates the entire menu and notifies observers. An item the
// menu is attached to detaches automatically and reverts to its no-menu
// path. Destroying a destroyed menu is a no-op.
func (m *Menu) Destroy() error {
	return m.engine.RunSync(func() error {
		if m.destroyed {
			return nil
		}
		m.destroyed = true

		invalidateNode(m.root)
		m.unexport()

		for _, fn := range m.observers {
			fn()
		}
		m.observers = nil

		return nil
	})
}

// invalidateNode marks the node and all descendants as removed so that
// later operations on their handles fail instead of corrupting the tree.
func invalidateNode(node *MenuItem) {
	node.removed = true
	for _, child := range node.children {
		invalidateNode(child)
	}
	node.children = nil
}

// addDestroyObserver subscribes owner to the destruction of the menu. The
// menu holds no reference to the item beyond the callback.
func (m *Menu) addDestroyObserver(owner *Item, fn func()) {
	m.observers[owner] = fn
}

func (m *Menu) removeDestroyObserver(owner *Item) {
	delete(m.observers, owner)
}

// export publishes the menu on bus under [MenuBarPath]. Runs on the worker.
func (m *Menu) export(bus busConn) error {
	if m.destroyed {
		return ErrStaleHandle
	}

	if err := bus.Export(&menuHandler{menu: m}, MenuBarPath, MenuInterface); err != nil {
		return fmt.Errorf("trayitem: failed to export menu: %w", err)
	}
	if err := bus.Export(&menuProperties{menu: m}, MenuBarPath, "org.freedesktop.DBus.Properties"); err != nil {
		return fmt.Errorf("trayitem: failed to export menu properties: %w", err)
	}
	if err := bus.Export(introspect.Introspectable(menuIntrospectionXML), MenuBarPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("trayitem: failed to export menu introspection data: %w", err)
	}

	m.bus = bus
	m.layoutUpdated(0)

	return nil
}

// unexport withdraws the menu from the bus. Runs on the worker.
func (m *Menu) unexport() {
	if m.bus == nil {
		return
	}

	m.bus.Export(nil, MenuBarPath, MenuInterface)
	m.bus.Export(nil, MenuBarPath, "org.freedesktop.DBus.Properties")
	m.bus.Export(nil, MenuBarPath, "org.freedesktop.DBus.Introspectable")

	m.shown = false
	m.bus = nil
}

// toggle implements the ContextMenu protocol action: hide when shown,
// otherwise ask the host to open the menu. dbusmenu has no direct popup
// call, so showing is requested by emitting ItemActivationRequested for
// the root node; the coordinates stay a hint the host already has.
func (m *Menu) toggle(x, y int) {
	_, _ = x, y

	if m.bus == nil {
		return
	}
	if m.shown {
		m.shown = false
		return
	}

	m.shown = true
	m.bus.Emit(MenuBarPath, MenuInterface+".ItemActivationRequested", int32(0), uint32(time.Now().Unix()))
}

// nodeByID finds a node by its wire id. Runs on the worker.
func (m *Menu) nodeByID(id int32) *MenuItem {
	var find func(node *MenuItem) *MenuItem
	find = func(node *MenuItem) *MenuItem {
		if node.id == id {
			return node
		}
		for _, child := range node.children {
			if found := find(child); found != nil {
				return found
			}
		}
		return nil
	}

	return find(m.root)
}

// handleEvent processes one dbusmenu event for the node with the given id.
// Runs on the worker.
func (m *Menu) handleEvent(id int32, eventID string) error {
	node := m.nodeByID(id)
	if node == nil {
		return fmt.Errorf("trayitem: no menu node with id %d", id)
	}
	if eventID != "clicked" || !node.enabled {
		return nil
	}

	if node.kind == nodeCheckable {
		node.checked = !node.checked
		m.propertiesUpdated(node.id, map[string]dbus.Variant{"toggle-state": dbus.MakeVariant(toggleState(node.checked))})
	}

	if node.callback != nil {
		node.callback()
	}

	return nil
}

func toggleState(checked bool) int32 {
	if checked {
		return 1
	}

	return 0
}

// updatedProperties and removedProperties are the wire entries of the
// ItemsPropertiesUpdated signal: (a(ia{sv}) a(ias)).
type updatedProperties struct {
	NodeID     int32
	Properties map[string]dbus.Variant
}

type removedProperties struct {
	NodeID     int32
	Properties []string
}

// eventGroupEntry is one element of the EventGroup argument: (isvu).
type eventGroupEntry struct {
	NodeID    int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}

// menuHandler is the bus-facing method set of the exported menu. Calls
// arrive on the connection's dispatch goroutine and are marshaled onto the
// engine before touching the tree.
type menuHandler struct {
	menu *Menu
}

func (h *menuHandler) GetLayout(parentID, recursionDepth int32, propertyNames []string) (uint32, layoutNode, *dbus.Error) {
	var revision uint32
	var layout layoutNode

	err := h.menu.engine.RunSync(func() error {
		node := h.menu.nodeByID(parentID)
		if node == nil {
			return fmt.Errorf("trayitem: no menu node with id %d", parentID)
		}

		revision = h.menu.revision
		layout = buildLayout(node, recursionDepth, propertyNames)

		return nil
	})
	if err != nil {
		return 0, layoutNode{}, dbus.MakeFailedError(err)
	}

	return revision, layout, nil
}

func (h *menuHandler) GetGroupProperties(ids []int32, propertyNames []string) ([]updatedProperties, *dbus.Error) {
	props := []updatedProperties{}

	h.menu.engine.RunSync(func() error {
		for _, id := range ids {
			node := h.menu.nodeByID(id)
			if node == nil {
				continue
			}

			props = append(props, updatedProperties{
				NodeID:     id,
				Properties: filterProperties(node.wireProperties(), propertyNames),
			})
		}
		return nil
	})

	return props, nil
}

func (h *menuHandler) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	var value dbus.Variant
	var found bool

	h.menu.engine.RunSync(func() error {
		node := h.menu.nodeByID(id)
		if node == nil {
			return nil
		}

		value, found = node.wireProperties()[name]
		return nil
	})

	if !found {
		return dbus.Variant{}, prop.ErrPropNotFound
	}

	return value, nil
}

func (h *menuHandler) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	err := h.menu.engine.RunSync(func() error {
		return h.menu.handleEvent(id, eventID)
	})
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	return nil
}

func (h *menuHandler) EventGroup(events []eventGroupEntry) ([]int32, *dbus.Error) {
	idErrors := []int32{}

	h.menu.engine.RunSync(func() error {
		for _, event := range events {
			if err := h.menu.handleEvent(event.NodeID, event.EventID); err != nil {
				idErrors = append(idErrors, event.NodeID)
			}
		}
		return nil
	})

	return idErrors, nil
}

func (h *menuHandler) AboutToShow(id int32) (bool, *dbus.Error) {
	h.menu.engine.RunSync(func() error {
		if id == 0 {
			h.menu.shown = true
		}
		return nil
	})

	return false, nil
}

func (h *menuHandler) AboutToShowGroup(ids []int32) ([]int32, []int32, *dbus.Error) {
	return []int32{}, []int32{}, nil
}

// menuProperties implements org.freedesktop.DBus.Properties for the menu
// object. All values are fixed for the lifetime of the export.
type menuProperties struct {
	menu *Menu
}

func (p *menuProperties) values() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Version":       dbus.MakeVariant(menuVersion),
		"TextDirection": dbus.MakeVariant("ltr"),
		"Status":        dbus.MakeVariant("normal"),
		"IconThemePath": dbus.MakeVariant([]string{}),
	}
}

func (p *menuProperties) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	if iface != MenuInterface {
		return dbus.Variant{}, prop.ErrIfaceNotFound
	}

	value, found := p.values()[property]
	if !found {
		return dbus.Variant{}, prop.ErrPropNotFound
	}

	return value, nil
}

func (p *menuProperties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != MenuInterface {
		return nil, prop.ErrIfaceNotFound
	}

	return p.values(), nil
}

func (p *menuProperties) Set(iface, property string, value dbus.Variant) *dbus.Error {
	if iface != MenuInterface {
		return prop.ErrIfaceNotFound
	}

	return prop.ErrReadOnly
}
