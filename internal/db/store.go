package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/csi.report/internal/beamform/bitpack"
	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/csi/parse"
	"github.com/banshee-data/csi.report/internal/monitoring"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("capture run not found")

// Run is one pass of the feedback tools over a capture file.
type Run struct {
	RunID      string `json:"run_id"`
	SourcePath string `json:"source_path"`
	Source     string `json:"source"`
	Format     string `json:"format"`
	PsiBits    int    `json:"psi_bits"`
	StartedAt  int64  `json:"started_at"`            // unix nanos
	FinishedAt int64  `json:"finished_at,omitempty"` // unix nanos, zero while running
	Records    int    `json:"records"`
	Frames     int    `json:"frames"`
	Failed     int    `json:"failed"`
}

// StoredFrame is a frame header summary plus its packed feedback.
type StoredFrame struct {
	FrameID     int64
	RecordIndex int
	CapturedAt  time.Time
	Header      csi.FrameHeader
	Packed      []bitpack.PackedSubcarrier
}

// FeedbackStore persists capture runs and their per-frame feedback.
type FeedbackStore struct {
	db *DB
}

// NewFeedbackStore creates a new FeedbackStore.
func NewFeedbackStore(db *DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// StartRun inserts run. If RunID is empty, a UUID is generated; if
// StartedAt is zero, it is set to now.
func (s *FeedbackStore) StartRun(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_runs (run_id, source_path, source, format, psi_bits, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SourcePath, run.Source, run.Format, run.PsiBits, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}
	return nil
}

// FinishRun stamps the run's completion time and record counters.
func (s *FeedbackStore) FinishRun(ctx context.Context, runID string, records, frames, failed int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capture_runs
		SET finished_at = ?, records = ?, frames = ?, failed = ?
		WHERE run_id = ?`,
		time.Now().UnixNano(), records, frames, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordFrame stores one frame and its packed subcarriers in a single
// transaction and returns the new frame ID.
func (s *FeedbackStore) RecordFrame(ctx context.Context, runID string, recordIndex int, capturedAt time.Time, h csi.FrameHeader, packed []bitpack.PackedSubcarrier) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			monitoring.Logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	var captured interface{}
	if !capturedAt.IsZero() {
		captured = capturedAt.UnixNano()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO csi_frames (
			run_id, record_index, captured_at, noise_a, noise_b, noise_c,
			bfee_count, nrx, ntx, rssi_a, rssi_b, rssi_c, noise, agc,
			antenna_sel, length, rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, recordIndex, captured, h.NoiseA, h.NoiseB, h.NoiseC,
		h.BfeeCount, h.Nrx, h.Ntx, h.RSSIA, h.RSSIB, h.RSSIC, h.Noise, h.AGC,
		h.AntennaSel, h.Length, h.Rate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame %d of run %s: %w", recordIndex, runID, err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feedback_subcarriers (frame_id, subcarrier, packed, widths)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for sc, p := range packed {
		widths, err := json.Marshal(p.Widths)
		if err != nil {
			return 0, err
		}
		// SQLite integers are signed; the value is stored bit for bit.
		if _, err := stmt.ExecContext(ctx, frameID, sc, int64(p.Value), string(widths)); err != nil {
			return 0, fmt.Errorf("failed to insert subcarrier %d of frame %d: %w", sc, frameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit frame %d: %w", frameID, err)
	}
	return frameID, nil
}

const runColumns = `run_id, source_path, source, format, psi_bits, started_at,
	COALESCE(finished_at, 0), records, frames, failed`

func scanRun(row interface{ Scan(...interface{}) error }) (*Run, error) {
	var r Run
	err := row.Scan(&r.RunID, &r.SourcePath, &r.Source, &r.Format, &r.PsiBits, &r.StartedAt,
		&r.FinishedAt, &r.Records, &r.Frames, &r.Failed)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *FeedbackStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM capture_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns every run, most recent first.
func (s *FeedbackStore) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM capture_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadFrames returns every frame of a run in record order together with
// its packed feedback.
func (s *FeedbackStore) LoadFrames(ctx context.Context, runID string) ([]StoredFrame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.frame_id, f.record_index, COALESCE(f.captured_at, 0),
		       f.noise_a, f.noise_b, f.noise_c, f.bfee_count, f.nrx, f.ntx,
		       f.rssi_a, f.rssi_b, f.rssi_c, f.noise, f.agc, f.antenna_sel, f.length, f.rate,
		       s.subcarrier, s.packed, s.widths
		FROM csi_frames f
		JOIN feedback_subcarriers s ON s.frame_id = f.frame_id
		WHERE f.run_id = ?
		ORDER BY f.record_index, s.subcarrier`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load frames of run %s: %w", runID, err)
	}
	defer rows.Close()

	var frames []StoredFrame
	for rows.Next() {
		var (
			f          StoredFrame
			capturedAt int64
			sc         int
			packed     int64
			widthsJSON string
		)
		h := &f.Header
		if err := rows.Scan(&f.FrameID, &f.RecordIndex, &capturedAt,
			&h.NoiseA, &h.NoiseB, &h.NoiseC, &h.BfeeCount, &h.Nrx, &h.Ntx,
			&h.RSSIA, &h.RSSIB, &h.RSSIC, &h.Noise, &h.AGC, &h.AntennaSel, &h.Length, &h.Rate,
			&sc, &packed, &widthsJSON); err != nil {
			return nil, err
		}

		if n := len(frames); n == 0 || frames[n-1].FrameID != f.FrameID {
			if capturedAt != 0 {
				f.CapturedAt = time.Unix(0, capturedAt)
			}
			h.Perm = parse.AntennaPermutation(h.AntennaSel)
			frames = append(frames, f)
		}
		cur := &frames[len(frames)-1]

		var widths []uint
		if err := json.Unmarshal([]byte(widthsJSON), &widths); err != nil {
			return nil, fmt.Errorf("frame %d subcarrier %d: bad widths %q: %w", cur.FrameID, sc, widthsJSON, err)
		}
		if sc != len(cur.Packed) {
			return nil, fmt.Errorf("frame %d: subcarrier %d out of sequence", cur.FrameID, sc)
		}
		cur.Packed = append(cur.Packed, bitpack.PackedSubcarrier{Widths: widths, Value: uint64(packed)})
	}
	return frames, rows.Err()
}
