package trayitem

import "github.com/godbus/dbus/v5"

// layoutNode is the wire representation of one dbusmenu layout entry:
// (ia{sv}av).
type layoutNode struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// buildLayout serializes the subtree rooted at node. A recursionDepth of
// -1 means no limit, 0 cuts children off entirely. Runs on the worker.
func buildLayout(node *MenuItem, recursionDepth int32, propertyNames []string) layoutNode {
	layout := layoutNode{
		ID:         node.id,
		Properties: filterProperties(node.wireProperties(), propertyNames),
		Children:   []dbus.Variant{},
	}

	if recursionDepth == 0 {
		return layout
	}

	next := recursionDepth
	if next > 0 {
		next--
	}

	for _, child := range node.children {
		layout.Children = append(layout.Children, dbus.MakeVariant(buildLayout(child, next, propertyNames)))
	}

	return layout
}

// wireProperties returns the dbusmenu properties of the node. Only
// non-default values are included, matching what hosts expect.
func (n *MenuItem) wireProperties() map[string]dbus.Variant {
	props := map[string]dbus.Variant{}

	switch n.kind {
	case nodeSeparator:
		props["type"] = dbus.MakeVariant("separator")
		return props
	case nodeSubmenu:
		props["children-display"] = dbus.MakeVariant("submenu")
	case nodeCheckable:
		props["toggle-type"] = dbus.MakeVariant("checkmark")
		props["toggle-state"] = dbus.MakeVariant(toggleState(n.checked))
	}

	props["label"] = dbus.MakeVariant(n.text)
	props["enabled"] = dbus.MakeVariant(n.enabled)
	props["visible"] = dbus.MakeVariant(true)

	if n.iconName != "" {
		props["icon-name"] = dbus.MakeVariant(n.iconName)
	}
	if len(n.iconData) > 0 {
		props["icon-data"] = dbus.MakeVariant(n.iconData)
	}

	return props
}

// filterProperties restricts props to the requested names. An empty name
// list requests all properties.
func filterProperties(props map[string]dbus.Variant, names []string) map[string]dbus.Variant {
	if len(names) == 0 {
		return props
	}

	filtered := make(map[string]dbus.Variant, len(names))
	for _, name := range names {
		if value, ok := props[name]; ok {
			filtered[name] = value
		}
	}

	return filtered
}
