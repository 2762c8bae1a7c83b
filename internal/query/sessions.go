package query

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/store"
)

const maxTitleRunes = 80

// SessionEntity is one distinct (type, text) pair found in a session
type SessionEntity struct {
	Type  string `json:"entity_type"`
	Value string `json:"value"`
}

// Session summarizes one processed document
type Session struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Title    string          `json:"title"`
	Raw      string          `json:"raw"`
	Entities []SessionEntity `json:"entities"`
}

// Sessions lists every record directory holding a run record, text and
// entities, newest first. Sessions are not cached: their inputs are spread
// over the whole data root.
func (r *Reader) Sessions() ([]Session, error) {
	runs, err := paths.FindArtifacts(r.DataRoot, paths.ProcessingFile, true)
	if err != nil {
		return nil, err
	}

	sessions := []Session{}
	for _, run := range runs {
		dir := filepath.Dir(run)
		if !exists(filepath.Join(dir, paths.TextFile)) || !exists(filepath.Join(dir, paths.EntitiesFile)) {
			continue
		}

		session, err := loadSession(dir)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Date.After(sessions[j].Date) })

	r.logger().Debug("sessions listed", zap.Int("sessions", len(sessions)))
	return sessions, nil
}

func loadSession(dir string) (*Session, error) {
	rec, err := store.LoadRunRecord(dir)
	if err != nil {
		return nil, err
	}

	text, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
	if err != nil {
		return nil, fmt.Errorf("read text in %s: %w: %w", dir, model.ErrIO, err)
	}

	entities, err := loadSessionEntities(filepath.Join(dir, paths.EntitiesFile))
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       rec.DocID,
		Date:     rec.StartedAt,
		Title:    title(string(text)),
		Raw:      string(text),
		Entities: entities,
	}, nil
}

func loadSessionEntities(path string) ([]SessionEntity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, model.ErrIO, err)
	}
	var file model.EntitiesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid %s: %w: %w", path, model.ErrParse, err)
	}

	seen := map[SessionEntity]struct{}{}
	out := []SessionEntity{}
	for _, e := range file.Entities {
		if e.Type == "" || e.Text == "" {
			continue
		}
		se := SessionEntity{Type: e.Type, Value: e.Text}
		if _, dup := seen[se]; dup {
			continue
		}
		seen[se] = struct{}{}
		out = append(out, se)
	}
	return out, nil
}

// title is the first line of text cut to maxTitleRunes, or "Session" for empty text
func title(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return "Session"
	}
	if runes := []rune(line); len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return line
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
