package systemd

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Listener names expected in refocusd.socket via FileDescriptorName=.
const (
	NameAPI     = "api"
	NameMetrics = "metrics"
)

// Listeners holds all systemd-activated listeners
type Listeners struct {
	API       net.Listener
	Metrics   net.Listener
	Activated bool
}

// GetListeners retrieves systemd socket-activated file descriptors.
// Returns nil listeners if not running under socket activation.
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	// Check if systemd socket activation is available
	fds := activation.Files(false) // false = don't unset env vars
	if len(fds) == 0 {
		return listeners, nil
	}

	listeners.Activated = true

	// Named listeners require systemd 227+
	listenersMap, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	return fromNamed(listenersMap, listeners), nil
}

func fromNamed(named map[string][]net.Listener, listeners *Listeners) *Listeners {
	if lns, ok := named[NameAPI]; ok && len(lns) > 0 {
		listeners.API = lns[0]
	}
	if lns, ok := named[NameMetrics]; ok && len(lns) > 0 {
		listeners.Metrics = lns[0]
	}
	return listeners
}

// NotifyReady sends READY=1 notification to systemd
func NotifyReady() error {
	// sent is false when not running under systemd, which is not an error
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1 notification to systemd
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}
