package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Simultaneous(model.KindIssue, 2)
	r.Simultaneous(model.KindIssue, 2)
	r.Fallback(model.KindIssue, 3)
	r.Inconsistency(model.KindAttachment, "absent-flag")
	r.Rebuilt(model.KindIssue, true, 0)
	r.Rebuilt(model.KindIssue, false, 12)
	r.Failed(model.KindIssue, "structural")

	assert.InDelta(t, 2, testutil.ToFloat64(r.SimultaneousSets.WithLabelValues("issue", "2")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.OrderFallbacks.WithLabelValues("issue", "3")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.Inconsistencies.WithLabelValues("attachment", "absent-flag")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.EntitiesRebuilt.WithLabelValues("issue", "new", "0")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.EntitiesRebuilt.WithLabelValues("issue", "existing", ">10")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.Failures.WithLabelValues("issue", "structural")), 0)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Fallback(model.KindIssue, 2)
	assert.InDelta(t, 0, testutil.ToFloat64(b.OrderFallbacks.WithLabelValues("issue", "2")), 0)
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Rebuilt(model.KindIssue, true, 3)
	r.ObserveSink("versions", 3*time.Millisecond)
	r.RunFinished(model.KindIssue, "finished", time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "rewind.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `rewind_entities_rebuilt_total{activities="1-5",kind="issue",state="new"} 1`)
	assert.Contains(t, text, `rewind_sink_duration_seconds_count{sink="versions"} 1`)
	assert.Contains(t, text, `rewind_last_run_timestamp_seconds{kind="issue",status="finished"}`)
}
