// Package extract reads the text of documents that need no transcription.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/evidentia/internal/model"
)

// Supported reports whether the text of path can be read directly
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

// FromFile returns the text of a plain-text, Markdown or HTML document
func FromFile(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%s: unsupported document type: %w", path, model.ErrStructure)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w: %w", model.ErrIO, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FromHTML(string(data))
	default:
		return string(data), nil
	}
}

// FromHTML extracts the visible text of an HTML document, one line per block element
func FromHTML(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w: %w", model.ErrParse, err)
	}

	var lines []string
	var current strings.Builder
	flush := func() {
		if line := strings.TrimSpace(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip script, style, noscript tags
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(text)
			}
		}

		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	walk(doc)
	flush()
	return strings.Join(lines, "\n"), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "header", "footer", "blockquote", "pre", "title":
		return true
	}
	return false
}
