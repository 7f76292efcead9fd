// Package activity captures point-in-time foreground-activity snapshots
// through a swappable OsEventListener contract, enriching them through a
// small URL/bundle lookup cache before they reach classification.
package activity

import (
	"context"

	"github.com/pulsearc/agent-core/internal/domain"
)

// OsEventListener is the capability interface a platform-specific hook
// implements; this module ships only PollingListener, a gopsutil-backed
// fallback usable on any OS lacking a native implementation — concrete OS
// bindings (Accessibility API, Win32 hooks) are out of scope here.
type OsEventListener interface {
	CaptureActive(ctx context.Context) (domain.ActivityContext, error)
}
