package trayitem

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/stretchr/testify/require"
)

func newTestMenu(t *testing.T) (*Engine, *Menu) {
	t.Helper()

	e := newTestEngine(t)

	return e, NewMenu(e)
}

func TestMenuGetLayout(t *testing.T) {
	_, m := newTestMenu(t)

	_, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)
	_, err = m.AddSeparator(nil)
	require.NoError(t, err)
	sub, err := m.AddSubmenu(nil, "More")
	require.NoError(t, err)
	_, err = m.AddAction(sub, "Child", nil)
	require.NoError(t, err)

	h := &menuHandler{menu: m}

	revision, layout, derr := h.GetLayout(0, -1, nil)
	require.Nil(t, derr)
	require.Equal(t, m.revision, revision)
	require.Equal(t, int32(0), layout.ID)
	require.Len(t, layout.Children, 3)

	action := layout.Children[0].Value().(layoutNode)
	require.Equal(t, "Open", action.Properties["label"].Value())
	require.Equal(t, true, action.Properties["enabled"].Value())

	separator := layout.Children[1].Value().(layoutNode)
	require.Equal(t, "separator", separator.Properties["type"].Value())

	submenu := layout.Children[2].Value().(layoutNode)
	require.Equal(t, "submenu", submenu.Properties["children-display"].Value())
	require.Len(t, submenu.Children, 1)

	child := submenu.Children[0].Value().(layoutNode)
	require.Equal(t, "Child", child.Properties["label"].Value())
}

func TestMenuGetLayoutRecursionDepth(t *testing.T) {
	_, m := newTestMenu(t)

	sub, err := m.AddSubmenu(nil, "More")
	require.NoError(t, err)
	_, err = m.AddAction(sub, "Child", nil)
	require.NoError(t, err)

	h := &menuHandler{menu: m}

	_, layout, derr := h.GetLayout(0, 0, nil)
	require.Nil(t, derr)
	require.Empty(t, layout.Children)

	_, layout, derr = h.GetLayout(0, 1, nil)
	require.Nil(t, derr)
	require.Len(t, layout.Children, 1)
	require.Empty(t, layout.Children[0].Value().(layoutNode).Children)
}

func TestMenuGetLayoutUnknownNode(t *testing.T) {
	_, m := newTestMenu(t)

	_, _, derr := (&menuHandler{menu: m}).GetLayout(42, -1, nil)
	require.NotNil(t, derr)
}

func TestMenuEmptyTextRejected(t *testing.T) {
	_, m := newTestMenu(t)

	_, err := m.AddAction(nil, "", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.AddCheckableAction(nil, "", false, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.AddSubmenu(nil, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMenuNonSubmenuParentRejected(t *testing.T) {
	_, m := newTestMenu(t)

	action, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)

	_, err = m.AddAction(action, "Nested", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMenuSetCheckedNotCheckable(t *testing.T) {
	_, m := newTestMenu(t)

	action, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)

	require.ErrorIs(t, m.SetChecked(action, true), ErrNotCheckable)

	separator, err := m.AddSeparator(nil)
	require.NoError(t, err)
	require.ErrorIs(t, m.SetChecked(separator, true), ErrNotCheckable)
}

func TestMenuEventTogglesCheckable(t *testing.T) {
	_, m := newTestMenu(t)

	clicked := 0
	check, err := m.AddCheckableAction(nil, "Mute", false, func() { clicked++ })
	require.NoError(t, err)

	h := &menuHandler{menu: m}

	require.Nil(t, h.Event(check.id, "clicked", dbus.Variant{}, 0))
	require.Equal(t, 1, clicked)

	state, derr := h.GetProperty(check.id, "toggle-state")
	require.Nil(t, derr)
	require.Equal(t, int32(1), state.Value())

	require.Nil(t, h.Event(check.id, "clicked", dbus.Variant{}, 0))
	require.Equal(t, 2, clicked)

	state, derr = h.GetProperty(check.id, "toggle-state")
	require.Nil(t, derr)
	require.Equal(t, int32(0), state.Value())
}

func TestMenuEventIgnoresDisabled(t *testing.T) {
	_, m := newTestMenu(t)

	clicked := false
	action, err := m.AddDisabledAction(nil, "Open", func() { clicked = true })
	require.NoError(t, err)

	h := &menuHandler{menu: m}
	require.Nil(t, h.Event(action.id, "clicked", dbus.Variant{}, 0))
	require.False(t, clicked)

	require.NoError(t, m.SetEnabled(action, true))
	require.Nil(t, h.Event(action.id, "clicked", dbus.Variant{}, 0))
	require.True(t, clicked)
}

func TestMenuEventUnknownNode(t *testing.T) {
	_, m := newTestMenu(t)

	require.NotNil(t, (&menuHandler{menu: m}).Event(42, "clicked", dbus.Variant{}, 0))
}

func TestMenuRemoveInvalidatesDescendants(t *testing.T) {
	_, m := newTestMenu(t)

	sub, err := m.AddSubmenu(nil, "More")
	require.NoError(t, err)
	child, err := m.AddAction(sub, "Child", nil)
	require.NoError(t, err)

	require.NoError(t, m.Remove(sub))

	require.ErrorIs(t, m.SetText(sub, "x"), ErrStaleHandle)
	require.ErrorIs(t, m.SetText(child, "x"), ErrStaleHandle)
	require.ErrorIs(t, m.Remove(sub), ErrStaleHandle)

	_, layout, derr := (&menuHandler{menu: m}).GetLayout(0, -1, nil)
	require.Nil(t, derr)
	require.Empty(t, layout.Children)
}

func TestMenuClear(t *testing.T) {
	_, m := newTestMenu(t)

	action, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)

	require.NoError(t, m.Clear(nil))
	require.ErrorIs(t, m.SetText(action, "x"), ErrStaleHandle)

	// The tree itself stays usable.
	_, err = m.AddAction(nil, "Quit", nil)
	require.NoError(t, err)
}

func TestMenuRemoveRootRejected(t *testing.T) {
	_, m := newTestMenu(t)

	require.ErrorIs(t, m.Remove(m.root), ErrInvalidArgument)
}

func TestMenuDestroy(t *testing.T) {
	_, m := newTestMenu(t)

	action, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)

	require.NoError(t, m.Destroy())
	require.NoError(t, m.Destroy())

	require.ErrorIs(t, m.SetText(action, "x"), ErrStaleHandle)
	_, err = m.AddAction(nil, "Quit", nil)
	require.ErrorIs(t, err, ErrStaleHandle)
}

func TestMenuExportEmitsLayoutUpdated(t *testing.T) {
	e, m := newTestMenu(t)
	bus := newFakeBus()

	require.NoError(t, e.RunSync(func() error { return m.export(bus) }))
	require.Len(t, bus.emitted(MenuInterface+".LayoutUpdated"), 1)

	action, err := m.AddAction(nil, "Open", nil)
	require.NoError(t, err)
	require.Len(t, bus.emitted(MenuInterface+".LayoutUpdated"), 2)

	require.NoError(t, m.SetText(action, "Close"))
	updates := bus.emitted(MenuInterface + ".ItemsPropertiesUpdated")
	require.Len(t, updates, 1)
	entries := updates[0].Values[0].([]updatedProperties)
	require.Equal(t, action.id, entries[0].NodeID)
	require.Equal(t, "Close", entries[0].Properties["label"].Value())

	// Setting the same text again announces nothing.
	require.NoError(t, m.SetText(action, "Close"))
	require.Len(t, bus.emitted(MenuInterface+".ItemsPropertiesUpdated"), 1)
}

func TestMenuToggle(t *testing.T) {
	e, m := newTestMenu(t)
	bus := newFakeBus()

	require.NoError(t, e.RunSync(func() error { return m.export(bus) }))

	toggle := func() {
		e.RunSync(func() error {
			m.toggle(0, 0)
			return nil
		})
	}

	toggle()
	require.Len(t, bus.emitted(MenuInterface+".ItemActivationRequested"), 1)

	// Second toggle hides the menu instead of requesting activation again.
	toggle()
	require.Len(t, bus.emitted(MenuInterface+".ItemActivationRequested"), 1)

	toggle()
	require.Len(t, bus.emitted(MenuInterface+".ItemActivationRequested"), 2)
}

func TestMenuProperties(t *testing.T) {
	_, m := newTestMenu(t)
	p := &menuProperties{menu: m}

	version, derr := p.Get(MenuInterface, "Version")
	require.Nil(t, derr)
	require.Equal(t, menuVersion, version.Value())

	_, derr = p.Get(MenuInterface, "NoSuchProperty")
	require.Equal(t, prop.ErrPropNotFound, derr)

	_, derr = p.Get("com.example.Other", "Version")
	require.Equal(t, prop.ErrIfaceNotFound, derr)

	require.Equal(t, prop.ErrReadOnly, p.Set(MenuInterface, "Status", dbus.MakeVariant("notice")))
}
