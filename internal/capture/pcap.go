package capture

import (
	"fmt"
	"io"

	"github.com/banshee-data/csi.report/internal/monitoring"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// LINKTYPE_NETLINK is the pcap link type of nlmon captures. Each packet is a
// whole netlink message, so the data is a netlink-source record.
const LINKTYPE_NETLINK layers.LinkType = 253

// PcapReader returns every packet of a pcap capture as a record.
type PcapReader struct {
	r     *pcapgo.Reader
	index int
}

// NewPcapReader reads the pcap file header from r.
func NewPcapReader(r io.Reader) (*PcapReader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if lt := pr.LinkType(); lt != LINKTYPE_NETLINK {
		monitoring.Logf("capture: pcap link type %d is not netlink; packets are parsed as-is", lt)
	}
	return &PcapReader{r: pr}, nil
}

// Next returns the next packet. Packets truncated by the capture snap length
// are returned as captured; the parser reports them.
func (p *PcapReader) Next() (Record, error) {
	data, ci, err := p.r.ReadPacketData()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, fmt.Errorf("pcap packet %d: %w", p.index, err)
	}
	if ci.CaptureLength < ci.Length {
		monitoring.Logf("capture: pcap packet %d truncated to %d of %d bytes", p.index, ci.CaptureLength, ci.Length)
	}

	rec := Record{Index: p.index, Offset: -1, Timestamp: ci.Timestamp, Data: data}
	p.index++
	return rec, nil
}

// PcapWriter writes records as a netlink pcap capture.
type PcapWriter struct {
	w *pcapgo.Writer
}

// NewPcapWriter writes the file header for a netlink capture to w.
func NewPcapWriter(w io.Writer, snaplen uint32) (*PcapWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, LINKTYPE_NETLINK); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &PcapWriter{w: pw}, nil
}

// WriteRecord appends one record as a packet captured at rec.Timestamp.
func (p *PcapWriter) WriteRecord(rec Record) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     rec.Timestamp,
		CaptureLength: len(rec.Data),
		Length:        len(rec.Data),
	}
	return p.w.WritePacket(ci, rec.Data)
}
