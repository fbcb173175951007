package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/csi.report/internal/beamform/bitpack"
	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	testutil.SilenceLogs(t)
	db, err := NewDB(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePacked(seed uint64) []bitpack.PackedSubcarrier {
	out := make([]bitpack.PackedSubcarrier, csi.NumSubcarriers)
	for sc := range out {
		out[sc] = bitpack.PackedSubcarrier{
			Widths: []uint{3, 5, 3, 3, 5, 5},
			Value:  (seed*31 + uint64(sc)*977) & (1<<24 - 1),
		}
	}
	return out
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewFeedbackStore(setupTestDB(t))

	run := &Run{SourcePath: "capture.dat", Source: "file", Format: "log", PsiBits: 3}
	require.NoError(t, store.StartRun(ctx, run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.StartedAt)

	got, err := store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	require.NoError(t, store.FinishRun(ctx, run.RunID, 10, 8, 2))
	got, err = store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Records)
	assert.Equal(t, 8, got.Frames)
	assert.Equal(t, 2, got.Failed)
	assert.NotZero(t, got.FinishedAt)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.FinishRun(ctx, "missing", 0, 0, 0), ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewFeedbackStore(setupTestDB(t))

	older := &Run{RunID: "older", SourcePath: "a", Source: "file", Format: "log", PsiBits: 3, StartedAt: 100}
	newer := &Run{RunID: "newer", SourcePath: "b", Source: "netlink", Format: "pcap", PsiBits: 2, StartedAt: 200}
	require.NoError(t, store.StartRun(ctx, older))
	require.NoError(t, store.StartRun(ctx, newer))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].RunID)
	assert.Equal(t, "older", runs[1].RunID)
}

func TestRecordAndLoadFrames(t *testing.T) {
	ctx := context.Background()
	store := NewFeedbackStore(setupTestDB(t))

	run := &Run{SourcePath: "capture.pcap", Source: "netlink", Format: "pcap", PsiBits: 3}
	require.NoError(t, store.StartRun(ctx, run))

	header := csi.FrameHeader{
		NoiseA: 10, NoiseB: 12, NoiseC: 9,
		BfeeCount: 42, Nrx: 3, Ntx: 3,
		RSSIA: 40, RSSIB: 39, RSSIC: 38,
		Noise: -90, AGC: 30, AntennaSel: 0b10_01_00,
		Length: 100, Rate: 0x1c1,
	}
	at := time.Unix(1700000000, 123456789)

	// Recorded out of order; loaded in record order.
	id2, err := store.RecordFrame(ctx, run.RunID, 2, time.Time{}, header, samplePacked(2))
	require.NoError(t, err)
	id1, err := store.RecordFrame(ctx, run.RunID, 1, at, header, samplePacked(1))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	frames, err := store.LoadFrames(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, 1, frames[0].RecordIndex)
	assert.Equal(t, id1, frames[0].FrameID)
	assert.True(t, frames[0].CapturedAt.Equal(at))
	assert.True(t, frames[1].CapturedAt.IsZero())

	wantHeader := header
	wantHeader.Perm = [3]int{1, 2, 3}
	for _, f := range frames {
		if diff := cmp.Diff(wantHeader, f.Header); diff != "" {
			t.Errorf("record %d header mismatch (-want +got):\n%s", f.RecordIndex, diff)
		}
	}

	if diff := cmp.Diff(samplePacked(1), frames[0].Packed); diff != "" {
		t.Errorf("packed feedback mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(samplePacked(2), frames[1].Packed); diff != "" {
		t.Errorf("packed feedback mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordFrameHighBitValue(t *testing.T) {
	ctx := context.Background()
	store := NewFeedbackStore(setupTestDB(t))
	run := &Run{SourcePath: "x", Source: "file", Format: "log", PsiBits: 4}
	require.NoError(t, store.StartRun(ctx, run))

	packed := []bitpack.PackedSubcarrier{{Widths: []uint{64}, Value: 1<<63 | 5}}
	_, err := store.RecordFrame(ctx, run.RunID, 0, time.Time{}, csi.FrameHeader{Nrx: 3, Ntx: 3}, packed)
	require.NoError(t, err)

	frames, err := store.LoadFrames(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(1<<63|5), frames[0].Packed[0].Value)
}

func TestRecordFrameDuplicateIndexRollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewFeedbackStore(db)
	run := &Run{SourcePath: "x", Source: "file", Format: "log", PsiBits: 3}
	require.NoError(t, store.StartRun(ctx, run))

	_, err := store.RecordFrame(ctx, run.RunID, 0, time.Time{}, csi.FrameHeader{Nrx: 3, Ntx: 3}, samplePacked(0))
	require.NoError(t, err)
	_, err = store.RecordFrame(ctx, run.RunID, 0, time.Time{}, csi.FrameHeader{Nrx: 3, Ntx: 3}, samplePacked(1))
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM feedback_subcarriers`).Scan(&count))
	assert.Equal(t, csi.NumSubcarriers, count)
}

func TestRecordFrameUnknownRun(t *testing.T) {
	store := NewFeedbackStore(setupTestDB(t))
	_, err := store.RecordFrame(context.Background(), "nope", 0, time.Time{}, csi.FrameHeader{}, samplePacked(0))
	assert.Error(t, err, "foreign key should reject frames of unknown runs")
}
