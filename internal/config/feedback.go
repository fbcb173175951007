package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/csi.report/internal/beamform/quant"
	"github.com/banshee-data/csi.report/internal/csi/parse"
)

// FeedbackConfig is the JSON configuration of the feedback tools. Every
// field is optional; the Get* methods fall back to defaults.
type FeedbackConfig struct {
	// Quantization
	PsiBits *int `json:"psi_bits,omitempty"` // psi code width; phi uses psi_bits+2

	// Capture input
	Source *string `json:"source,omitempty"` // "file" or "netlink" record prefix
	Format *string `json:"format,omitempty"` // "log" or "pcap" container

	// Pipeline
	Workers      *int    `json:"workers,omitempty"`
	FrameTimeout *string `json:"frame_timeout,omitempty"` // duration string like "5s"

	// Outputs (empty disables)
	DBPath  *string `json:"db_path,omitempty"`
	PlotDir *string `json:"plot_dir,omitempty"`
}

// Capture container formats.
const (
	FormatLog  = "log"
	FormatPcap = "pcap"
)

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyFeedbackConfig returns a FeedbackConfig with all fields set to nil.
func EmptyFeedbackConfig() *FeedbackConfig {
	return &FeedbackConfig{}
}

// LoadFeedbackConfig loads a FeedbackConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to their defaults, so
// partial configs are safe.
func LoadFeedbackConfig(path string) (*FeedbackConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFeedbackConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *FeedbackConfig) Validate() error {
	if c.PsiBits != nil {
		if *c.PsiBits < quant.MinBits || *c.PsiBits > quant.MaxBits {
			return fmt.Errorf("psi_bits must be between %d and %d, got %d", quant.MinBits, quant.MaxBits, *c.PsiBits)
		}
	}

	if c.Source != nil {
		if _, err := parse.ParseSource(*c.Source); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
	}

	if c.Format != nil && *c.Format != FormatLog && *c.Format != FormatPcap {
		return fmt.Errorf("format must be %q or %q, got %q", FormatLog, FormatPcap, *c.Format)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.FrameTimeout != nil && *c.FrameTimeout != "" {
		d, err := time.ParseDuration(*c.FrameTimeout)
		if err != nil {
			return fmt.Errorf("invalid frame_timeout '%s': %w", *c.FrameTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("frame_timeout must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetPsiBits returns the psi_bits value or the default.
func (c *FeedbackConfig) GetPsiBits() int {
	if c.PsiBits == nil {
		return 3
	}
	return *c.PsiBits
}

// GetSource returns the parsed source. When unset it follows the format:
// pcap captures hold netlink messages, log files hold file records.
func (c *FeedbackConfig) GetSource() parse.Source {
	def := parse.SourceFile
	if c.GetFormat() == FormatPcap {
		def = parse.SourceNetlink
	}
	if c.Source == nil {
		return def
	}
	src, err := parse.ParseSource(*c.Source)
	if err != nil {
		return def // default on parse error
	}
	return src
}

// GetFormat returns the format value or the default.
func (c *FeedbackConfig) GetFormat() string {
	if c.Format == nil || *c.Format == "" {
		return FormatLog
	}
	return *c.Format
}

// GetWorkers returns the workers value or the default.
func (c *FeedbackConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetFrameTimeout parses and returns the FrameTimeout. Zero means no limit.
func (c *FeedbackConfig) GetFrameTimeout() time.Duration {
	if c.FrameTimeout == nil || *c.FrameTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FrameTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetDBPath returns the db_path value; empty disables persistence.
func (c *FeedbackConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetPlotDir returns the plot_dir value; empty disables plotting.
func (c *FeedbackConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// Override applies non-zero command-line values on top of c.
func (c *FeedbackConfig) Override(psiBits, workers int, source, format, dbPath, plotDir string) {
	if psiBits != 0 {
		c.PsiBits = ptrInt(psiBits)
	}
	if workers != 0 {
		c.Workers = ptrInt(workers)
	}
	if source != "" {
		c.Source = ptrString(source)
	}
	if format != "" {
		c.Format = ptrString(format)
	}
	if dbPath != "" {
		c.DBPath = ptrString(dbPath)
	}
	if plotDir != "" {
		c.PlotDir = ptrString(plotDir)
	}
}
