package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/csi.report/internal/csi/parse"
	"github.com/banshee-data/csi.report/internal/monitoring"
)

// LENGTH_FIELD_SIZE is the big-endian record length ahead of each log record.
const LENGTH_FIELD_SIZE = 2

// LogReader walks a CSI log file: every record is a 2-byte big-endian length
// followed by that many bytes, the first of which is the record code. Only
// beamforming records are returned; the rest are skipped.
type LogReader struct {
	r      *bufio.Reader
	offset int64
	index  int
}

// NewLogReader returns a LogReader over r.
func NewLogReader(r io.Reader) *LogReader {
	return &LogReader{r: bufio.NewReader(r)}
}

// Next returns the next beamforming record. It returns io.EOF at a clean end
// of file and io.ErrUnexpectedEOF when the last record is cut short.
func (l *LogReader) Next() (Record, error) {
	for {
		start := l.offset

		var lenBuf [LENGTH_FIELD_SIZE]byte
		n, err := io.ReadFull(l.r, lenBuf[:])
		l.offset += int64(n)
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("record length at offset %d: %w", start, err)
		}

		size := int(binary.BigEndian.Uint16(lenBuf[:]))
		data := make([]byte, size)
		n, err = io.ReadFull(l.r, data)
		l.offset += int64(n)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Record{}, fmt.Errorf("record body at offset %d (%d of %d bytes): %w", start, n, size, err)
		}

		if size == 0 || data[0] != parse.BFEE_RECORD_CODE {
			code := -1
			if size > 0 {
				code = int(data[0])
			}
			monitoring.RecordsSkipped.Inc()
			monitoring.Logf("capture: skipping log record at offset %d (code %d, %d bytes)", start, code, size)
			continue
		}

		rec := Record{Index: l.index, Offset: start, Data: data}
		l.index++
		return rec, nil
	}
}

// WriteLogRecord appends one length-prefixed record to w.
func WriteLogRecord(w io.Writer, data []byte) error {
	if len(data) > 0xFFFF {
		return fmt.Errorf("log record of %d bytes exceeds the 16-bit length field", len(data))
	}
	var lenBuf [LENGTH_FIELD_SIZE]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
