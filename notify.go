package trayitem

import (
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService                 = "org.freedesktop.Notifications"
	notificationsPath    dbus.ObjectPath = "/org/freedesktop/Notifications"
)

// notify fires a desktop notification through the org.freedesktop.Notifications
// service. The call is best-effort: no reply is awaited and failures are
// ignored, the side channel is purely advisory.
func notify(bus busConn, appName, iconName, summary, body string, timeout time.Duration) {
	obj := bus.Object(notificationsService, notificationsPath)
	obj.Go(
		notificationsService+".Notify",
		dbus.FlagNoReplyExpected,
		nil,
		appName,
		uint32(0),
		iconName,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(timeout/time.Millisecond),
	)
}
