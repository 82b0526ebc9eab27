package httpproxy

// Event is a lifecycle notification published by the proxy core. Logging
// and CLI collaborators subscribe through a [Notifier] without the core
// depending on any particular logging framework.
type Event interface {
	eventName() string
}

// ProxyEvent is published once per forwarded request.
type ProxyEvent struct {
	// Origin is the URL the client requested.
	Origin string

	// Target is the URL the request was forwarded to.
	Target string

	// Method is the HTTP method.
	Method string

	// Rewrite is true when a rule rewrote the target.
	Rewrite bool
}

func (ProxyEvent) eventName() string { return "proxy" }

// AddRuleEvent is published when a rule is registered.
type AddRuleEvent struct {
	Match string
	Proxy string
}

func (AddRuleEvent) eventName() string { return "addRule" }

// RemoveRuleEvent is published when a rule is removed.
type RemoveRuleEvent struct {
	Match string
	Proxy string
}

func (RemoveRuleEvent) eventName() string { return "removeRule" }

// WarnEvent is published when the proxy synthesizes an error response.
type WarnEvent struct {
	Status int
	Msg    string
}

func (WarnEvent) eventName() string { return "warn" }

// ErrorEvent is published for connection-scoped failures that produce no
// client response, such as a broken tunnel peer.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) eventName() string { return "error" }

// Notifier receives lifecycle events from the proxy core.
type Notifier interface {
	Publish(e Event)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(e Event)

// Publish calls the underlying function with the event.
func (f NotifierFunc) Publish(e Event) {
	f(e)
}
