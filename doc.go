// Package trayitem publishes system tray items implementing the
// [StatusNotifierItem] specification. It is the application (client) side of
// the protocol: it registers items with a StatusNotifierWatcher, exposes
// their properties and context menus on the session bus, and delivers
// activation, scroll, and menu events back to the application.
//
// # Usage
//
// The package is built around three types:
//   - [Engine] owns the single worker goroutine on which all protocol state
//     lives. One engine per process is constructed explicitly and shared by
//     every item.
//   - [Item] is one published tray item. All of its setters may be called
//     from any goroutine; they are marshaled onto the engine internally.
//   - [Menu] is a context menu tree. When attached to an item it is
//     mirrored on the bus as a com.canonical.dbusmenu object, so hosts can
//     render it and invoke its entries.
//
// In addition to the base specification, package trayitem implements
// com.canonical.dbusmenu for item menus and the org.freedesktop.Notifications
// side channel for transient messages.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package trayitem
