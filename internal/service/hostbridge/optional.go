package hostbridge

import (
	"fmt"

	"Predictor/internal/domain/models"
	"Predictor/internal/domain/service"
)

// Bridge is a host bridge that may also observe session updates.
type Bridge interface {
	service.HostBridge
	service.SessionObserver
}

// Optional wraps a possibly-nil bridge. With no inner bridge every call is a no-op.
// Panics raised by the inner bridge are turned into errors.
func Optional(b service.HostBridge) Bridge {
	return &optional{inner: b}
}

type optional struct {
	inner service.HostBridge
}

func (o *optional) Ready() error {
	return o.call("ready", func(b service.HostBridge) error { return b.Ready() })
}

func (o *optional) Expand() error {
	return o.call("expand", func(b service.HostBridge) error { return b.Expand() })
}

func (o *optional) EnableClosingConfirmation() error {
	return o.call("enableClosingConfirmation", func(b service.HostBridge) error { return b.EnableClosingConfirmation() })
}

func (o *optional) HapticFeedback(kind models.HapticKind) error {
	return o.call("haptic", func(b service.HostBridge) error { return b.HapticFeedback(kind) })
}

func (o *optional) SessionUpdated(s models.SessionSnapshot) {
	obs, ok := o.inner.(service.SessionObserver)
	if !ok {
		return
	}
	_ = o.call("state", func(service.HostBridge) error {
		obs.SessionUpdated(s)
		return nil
	})
}

// Inner returns the wrapped bridge, or nil.
func (o *optional) Inner() service.HostBridge { return o.inner }

func (o *optional) call(name string, fn func(service.HostBridge) error) (err error) {
	if o.inner == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host bridge %s panic: %v", name, r)
		}
	}()
	return fn(o.inner)
}
