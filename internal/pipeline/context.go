package pipeline

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/paths"
)

// Progress receives coarse progress events for one run
type Progress interface {
	Emit(stage, message string, percent int)
}

// LogProgress reports progress through a zap logger
type LogProgress struct {
	Logger *zap.Logger
}

// Emit logs one progress event
func (p LogProgress) Emit(stage, message string, percent int) {
	if p.Logger == nil {
		return
	}
	p.Logger.Info(message, zap.String("stage", stage), zap.Int("percent", percent))
}

// RecordContext describes the document a pipeline run works on
type RecordContext struct {
	// BaseDir is the data/YYYY/MM directory holding the source file
	BaseDir string

	// SourceFile is the document the run was started for
	SourceFile string

	// DataRoot overrides the data root derived from BaseDir; BaseDir must then sit two levels below it
	DataRoot string

	// RunDir overrides where processing.json is kept (default: the record directory)
	RunDir string

	// DocID is filled in by Pipeline.Run from the run record
	DocID string

	Progress Progress
	Logger   *zap.Logger
}

// NewRecordContext builds a context for a source file inside data/YYYY/MM
func NewRecordContext(sourceFile string) *RecordContext {
	return &RecordContext{
		BaseDir:    filepath.Dir(sourceFile),
		SourceFile: sourceFile,
	}
}

// Root returns the data root for global artifacts
func (c *RecordContext) Root() (string, error) {
	if c.DataRoot != "" {
		if c.BaseDir != "" {
			if err := paths.CheckBase(c.DataRoot, c.BaseDir); err != nil {
				return "", err
			}
		}
		return c.DataRoot, nil
	}
	return paths.DataRootFromBase(c.BaseDir)
}

// RecordDir returns (and creates) the per-document directory
func (c *RecordContext) RecordDir() (string, error) {
	return paths.EnsureRecordDir(c.BaseDir, c.SourceFile)
}

// Emit forwards a progress event when a sink is configured
func (c *RecordContext) Emit(stage, message string, percent int) {
	if c.Progress != nil {
		c.Progress.Emit(stage, message, percent)
	}
}

func (c *RecordContext) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *RecordContext) runDir() (string, error) {
	if c.RunDir != "" {
		return c.RunDir, nil
	}
	return c.RecordDir()
}
