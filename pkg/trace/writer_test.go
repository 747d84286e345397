package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLWriterEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1")
	ctx := context.Background()

	require.NoError(t, w.WritePlan(ctx, "deep", &PlanRecord{
		Goal:    "ev adoption",
		Depth:   2,
		Breadth: 4,
		Queries: []string{"solid state battery cost curve"},
	}))

	line := strings.TrimSpace(buf.String())
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(line), &rec))

	assert.Equal(t, TypePlan, rec.Type)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, "deep", rec.Strategy)
	assert.False(t, rec.TS.IsZero())

	var data PlanRecord
	require.NoError(t, json.Unmarshal(rec.Data, &data))
	assert.Equal(t, "ev adoption", data.Goal)
	assert.Equal(t, []string{"solid state battery cost curve"}, data.Queries)
}

func TestJSONLWriterRecordTypes(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-2")
	ctx := context.Background()

	require.NoError(t, w.WriteSearch(ctx, "deep", &SearchRecord{Query: "q", URLs: []string{"https://a"}}))
	require.NoError(t, w.WriteLearnings(ctx, "deep", &LearningsRecord{Query: "q", Learnings: []string{"l"}}))
	require.NoError(t, w.WriteMerge(ctx, &MergeRecord{DeepLearnings: 1, GroundedLearnings: 2, MergedLearnings: 3}))
	require.NoError(t, w.WriteReport(ctx, &ReportRecord{Chars: 10}))
	require.NoError(t, w.WriteError(ctx, "grounded", &ErrorRecord{Stage: "search", Message: "boom"}))

	wantTypes := []string{TypeSearch, TypeLearnings, TypeMerge, TypeReport, TypeError}
	scanner := bufio.NewScanner(&buf)
	var gotTypes []string
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		gotTypes = append(gotTypes, rec.Type)
	}
	assert.Equal(t, wantTypes, gotTypes)
}

func TestJSONLWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-3")

	require.NoError(t, w.Close())
	err := w.WriteReport(context.Background(), &ReportRecord{})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriterConcurrentWritesStayLineAtomic(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-4")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteSearch(ctx, "deep", &SearchRecord{Query: "concurrent", URLs: []string{"https://a", "https://b"}})
		}()
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	count := 0
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "every line must be standalone JSON")
		count++
	}
	assert.Equal(t, 20, count)
}

func TestNopWriter(t *testing.T) {
	w := NopWriter{}
	ctx := context.Background()

	assert.NoError(t, w.WritePlan(ctx, "deep", nil))
	assert.NoError(t, w.WriteMerge(ctx, nil))
	assert.NoError(t, w.Close())
}
