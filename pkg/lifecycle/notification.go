package lifecycle

import "time"

// NotificationAction identifies what a Notification announces.
type NotificationAction string

// Container notifications fired by a RegistryManager around each phase.
const (
	ActionInitialising NotificationAction = "initialising"
	ActionInitialised  NotificationAction = "initialised"
	ActionStarting     NotificationAction = "starting"
	ActionStarted      NotificationAction = "started"
	ActionStopping     NotificationAction = "stopping"
	ActionStopped      NotificationAction = "stopped"
	ActionDisposing    NotificationAction = "disposing"
	ActionDisposed     NotificationAction = "disposed"
)

// phaseActions maps default phases to their container notifications.
var phaseActions = map[string][2]NotificationAction{
	Initialise: {ActionInitialising, ActionInitialised},
	Start:      {ActionStarting, ActionStarted},
	Stop:       {ActionStopping, ActionStopped},
	Dispose:    {ActionDisposing, ActionDisposed},
}

// Notification is dispatched to a Listener by lifecycle objects and managers.
// Source names the object class, or the manager for container notifications.
type Notification struct {
	Action  NotificationAction
	Phase   string
	Source  string
	Manager string
	Time    time.Time
}

// Listener receives lifecycle notifications. The bus behind it is owned by
// the embedding application; calls are synchronous.
type Listener interface {
	OnNotification(n Notification)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(n Notification)

// OnNotification calls f.
func (f ListenerFunc) OnNotification(n Notification) { f(n) }
