package activity

import (
	"context"
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
)

// PollingListener approximates the foreground app by picking the
// most-recently-created, still-running, non-background process from the OS
// process table. It never sees window titles or URLs — those require a
// native Accessibility/Win32 hook this module does not ship — so it reports
// app name only and leaves WindowTitle empty for a real hook to fill in.
type PollingListener struct {
	excludeNames map[string]struct{}
}

// NewPollingListener builds a listener that skips the named processes
// (typically the agent's own binary and common background daemons) when
// picking a foreground candidate.
func NewPollingListener(excludeNames ...string) *PollingListener {
	exclude := make(map[string]struct{}, len(excludeNames))
	for _, name := range excludeNames {
		exclude[name] = struct{}{}
	}
	return &PollingListener{excludeNames: exclude}
}

// CaptureActive lists running processes via gopsutil and returns the
// youngest eligible one as a best-effort foreground proxy.
func (l *PollingListener) CaptureActive(ctx context.Context) (domain.ActivityContext, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return domain.ActivityContext{}, apperrors.Internal("failed to list processes", err)
	}

	type candidate struct {
		name      string
		createdMs int64
	}
	var candidates []candidate
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if _, skip := l.excludeNames[name]; skip {
			continue
		}
		createdMs, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{name: name, createdMs: createdMs})
	}

	if len(candidates) == 0 {
		return domain.ActivityContext{}, apperrors.NotFound("foreground_process", "none")
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].createdMs > candidates[j].createdMs })

	return domain.ActivityContext{AppName: candidates[0].name}, nil
}
