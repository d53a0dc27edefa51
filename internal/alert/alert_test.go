package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.messages = append(r.messages, text)
	return r.err
}

func TestShouldAlertBoundary(t *testing.T) {
	t.Parallel()

	require.False(t, ShouldAlert(sentinel.Risk{Score: 6}))
	require.True(t, ShouldAlert(sentinel.Risk{Score: 7}))
	require.True(t, ShouldAlert(sentinel.Risk{Score: 10}))
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	got := FormatMessage(sentinel.SeverityHigh, 8, "Berger Junction", "Excavation near the median.")
	require.Equal(t, "🚨 CNII SENTINEL ALERT\nSeverity: High (8/10)\nLocation: Berger Junction\nSummary: Excavation near the median.", got)
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	d := NewDispatcher(n, nil)

	require.True(t, d.Notify(context.Background(), sentinel.SeverityHigh, 9, "Ojota", "Drainage works"))
	require.Len(t, n.messages, 1)
	require.Contains(t, n.messages[0], "9/10")
	require.Contains(t, n.messages[0], "Location: Ojota")
}

func TestNotifySwallowsFailure(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{err: errors.New("telegram down")}
	d := NewDispatcher(n, nil)

	require.NotPanics(t, func() {
		require.False(t, d.Notify(context.Background(), sentinel.SeverityHigh, 7, "Apapa", "Grading"))
	})
	require.Len(t, n.messages, 1)
}

func TestNotifyDisabled(t *testing.T) {
	t.Parallel()

	require.False(t, NewDispatcher(nil, nil).Notify(context.Background(), sentinel.SeverityHigh, 8, "x", "y"))
	require.False(t, NewDispatcher(NoopNotifier{}, nil).Notify(context.Background(), sentinel.SeverityHigh, 8, "x", "y"))
}
