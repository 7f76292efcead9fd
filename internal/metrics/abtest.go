package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulsearc/agent-core/internal/domain"
)

// CommandMetricsRecorder is the storage capability abtest.go needs: record
// one execution, and fetch legacy-vs-new stats for a command over a window.
type CommandMetricsRecorder interface {
	RecordExecution(ctx context.Context, metric domain.CommandMetric) error
	CompareImplementations(ctx context.Context, command string, startTS, endTS int64) (legacy, newImpl domain.CommandStats, err error)
}

// ABRecorder times a single command invocation under either the "legacy"
// or "new" implementation label and persists the outcome for later
// comparison, mirroring the migration-validation role the original
// command metrics repository plays.
type ABRecorder struct {
	repo CommandMetricsRecorder
}

// NewABRecorder wraps a CommandMetricsRecorder.
func NewABRecorder(repo CommandMetricsRecorder) *ABRecorder {
	return &ABRecorder{repo: repo}
}

// Record stores the outcome of running command under implementation
// ("legacy" or "new"). errType, if non-empty, is persisted alongside a
// failed run for later triage.
func (a *ABRecorder) Record(ctx context.Context, command, implementation string, d time.Duration, success bool, errType string) error {
	metric := domain.CommandMetric{
		ID:             uuid.NewString(),
		Command:        command,
		Implementation: implementation,
		Timestamp:      time.Now().Unix(),
		DurationMs:     uint64(d.Milliseconds()),
		Success:        success,
	}
	if errType != "" {
		metric.ErrorType = &errType
	}
	return a.repo.RecordExecution(ctx, metric)
}

// Time runs fn under the given command/implementation labels, recording
// its duration and success/failure.
func (a *ABRecorder) Time(ctx context.Context, command, implementation string, fn func(ctx context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	errType := ""
	if err != nil {
		errType = "execution_error"
	}
	recordErr := a.Record(ctx, command, implementation, time.Since(started), err == nil, errType)
	if err != nil {
		return err
	}
	return recordErr
}

// Compare fetches side-by-side stats for the legacy and new implementations
// of command over [startTS, endTS], for migration dashboards to render.
func (a *ABRecorder) Compare(ctx context.Context, command string, startTS, endTS int64) (legacy, newImpl domain.CommandStats, err error) {
	return a.repo.CompareImplementations(ctx, command, startTS, endTS)
}
