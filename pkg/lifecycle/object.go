package lifecycle

import "time"

// Matcher selects managed objects.
type Matcher func(obj any) bool

// MatchAny matches every object.
func MatchAny(any) bool { return true }

// MatchType matches objects assignable to T.
func MatchType[T any]() Matcher {
	return func(obj any) bool {
		_, ok := obj.(T)
		return ok
	}
}

// Object describes a class of managed objects a phase is applied to,
// together with the notifications fired around it.
type Object struct {
	name  string
	match Matcher
	pre   NotificationAction
	post  NotificationAction
}

// ObjectOption configures an Object.
type ObjectOption func(*Object)

// WithNotifications sets the actions fired before and after the class is processed.
// An empty action fires nothing.
func WithNotifications(pre, post NotificationAction) ObjectOption {
	return func(o *Object) {
		o.pre = pre
		o.post = post
	}
}

// NewObject creates an object class named name selecting objects with match.
func NewObject(name string, match Matcher, opts ...ObjectOption) *Object {
	if match == nil {
		match = MatchAny
	}
	o := &Object{name: name, match: match}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the class name.
func (o *Object) Name() string { return o.name }

// Matches reports whether obj belongs to the class.
func (o *Object) Matches(obj any) bool { return o.match(obj) }

// Matcher returns the class selector.
func (o *Object) Matcher() Matcher { return o.match }

// FirePreNotification notifies l that phase is about to be applied to the class.
func (o *Object) FirePreNotification(phase, manager string, l Listener) {
	o.fire(o.pre, phase, manager, l)
}

// FirePostNotification notifies l that phase has been applied to the class.
func (o *Object) FirePostNotification(phase, manager string, l Listener) {
	o.fire(o.post, phase, manager, l)
}

func (o *Object) fire(action NotificationAction, phase, manager string, l Listener) {
	if action == "" || l == nil {
		return
	}
	l.OnNotification(Notification{
		Action:  action,
		Phase:   phase,
		Source:  o.name,
		Manager: manager,
		Time:    time.Now(),
	})
}
