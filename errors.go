package trayitem

import "errors"

var (
	// ErrEngineNotStarted is returned when a task is submitted to an engine
	// whose worker has not been started yet.
	ErrEngineNotStarted = errors.New("trayitem: engine not started")

	// ErrEngineStopped is returned when a task is submitted to, or is still
	// queued on, an engine that is shutting down.
	ErrEngineStopped = errors.New("trayitem: engine stopped")

	// ErrBusRegistration is returned by [NewItem] when the item's bus object
	// could not be published. Construction fails entirely; no partial item
	// is left behind.
	ErrBusRegistration = errors.New("trayitem: bus registration failed")

	// ErrStaleHandle is returned when a menu operation references a node
	// that was removed or belongs to a destroyed menu.
	ErrStaleHandle = errors.New("trayitem: stale menu handle")

	// ErrNotCheckable is returned by [Menu.SetChecked] when the node is not
	// a checkable action.
	ErrNotCheckable = errors.New("trayitem: menu node is not checkable")

	// ErrItemClosed is returned by operations on an [Item] after Close.
	ErrItemClosed = errors.New("trayitem: item is closed")

	// ErrInvalidArgument is returned when a required string argument is
	// empty or a handle argument is nil.
	ErrInvalidArgument = errors.New("trayitem: invalid argument")
)
