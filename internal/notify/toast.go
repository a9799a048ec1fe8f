package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"

	"github.com/projectcore/changecontrol/internal/domain"
)

// Toaster fires a local desktop notification when a rollback audit entry
// lands. Windows-only; on other platforms an enabled toaster shows nothing
// and NotifyRollback returns an error.
type Toaster struct {
	appID   string
	enabled bool
}

// NewToaster builds a toaster. enabled mirrors TOAST_NOTIFY; when false,
// NotifyRollback is always a no-op regardless of platform.
func NewToaster(enabled bool) *Toaster {
	return &Toaster{appID: "changecontrold", enabled: enabled}
}

// NotifyRollback surfaces a rollback as a Windows toast. Errors are logged
// by the caller's discretion; this never blocks or fails the rollback.
func (t *Toaster) NotifyRollback(a *domain.AuditLog) error {
	if t == nil || !t.enabled {
		return nil
	}
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   "Change rolled back",
		Message: fmt.Sprintf("%s/%s reverted by %s", a.EntityType, a.EntityID, a.Actor),
		Audio:   toast.Default,
	}

	return notification.Push()
}

// IsSupported reports whether this platform can actually show a toast.
func (t *Toaster) IsSupported() bool {
	return runtime.GOOS == "windows"
}
