package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/evidentia/internal/model"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"notes.txt", true},
		{"notes.MD", true},
		{"page.html", true},
		{"page.htm", true},
		{"record0001.m4a", false},
		{"record0001", false},
	}

	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFromHTML(t *testing.T) {
	content := `<html>
<head><title>ignored</title><style>p { color: red }</style></head>
<body>
  <h1>Quarterly   review</h1>
  <p>Jane Doe from <b>Acme GmbH</b> joined.</p>
  <script>var x = "hidden";</script>
  <ul><li>Budget</li><li>Hiring</li></ul>
</body>
</html>`

	got, err := FromHTML(content)
	if err != nil {
		t.Fatalf("FromHTML failed: %v", err)
	}

	want := "Quarterly review\nJane Doe from Acme GmbH joined.\nBudget\nHiring"
	if got != want {
		t.Errorf("FromHTML() =\n%q\nwant\n%q", got, want)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("Meeting with Jane\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FromFile(txt)
	if err != nil {
		t.Fatalf("FromFile(txt) failed: %v", err)
	}
	if got != "Meeting with Jane\n" {
		t.Errorf("FromFile(txt) = %q", got)
	}

	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<p>Hello</p><p>World</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = FromFile(page)
	if err != nil {
		t.Fatalf("FromFile(html) failed: %v", err)
	}
	if got != "Hello\nWorld" {
		t.Errorf("FromFile(html) = %q", got)
	}

	if _, err := FromFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, model.ErrIO) {
		t.Errorf("missing file: expected ErrIO, got %v", err)
	}
	if _, err := FromFile(filepath.Join(dir, "audio.m4a")); !errors.Is(err, model.ErrStructure) {
		t.Errorf("audio: expected ErrStructure, got %v", err)
	}
}
