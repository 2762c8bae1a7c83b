package agents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/evidentia/internal/extract"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/pipeline"
	"github.com/ppiankov/evidentia/internal/store"
)

// TextStep produces the document's text.txt. Text, Markdown and HTML sources
// are read directly; anything else goes to the transcription collaborator.
type TextStep struct {
	Transcriber Collaborator
}

func (TextStep) Name() string { return "transcription" }

func (s TextStep) Run(ctx context.Context, rc *pipeline.RecordContext) error {
	dir, err := rc.RecordDir()
	if err != nil {
		return err
	}

	rc.Emit(s.Name(), "producing document text", 10)

	var text string
	if extract.Supported(rc.SourceFile) {
		if text, err = extract.FromFile(rc.SourceFile); err != nil {
			return err
		}
	} else {
		out, err := s.Transcriber.Call(ctx, Request{
			Task:       TaskTranscribe,
			DocID:      rc.DocID,
			SourceFile: rc.SourceFile,
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(string(out))
	}

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty document text", model.ErrUpstream)
	}

	return store.WriteFile(filepath.Join(dir, paths.TextFile), []byte(text))
}
