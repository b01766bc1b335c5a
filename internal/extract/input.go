package extract

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ReadInputList reads a newline-delimited list of document paths.
// Blank lines and lines starting with '#' are skipped; duplicates are
// collapsed. Order is not guaranteed to follow the file.
func ReadInputList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	unique := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		unique[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(unique))
	for p := range unique {
		paths = append(paths, p)
	}
	return paths, nil
}

// DetectFileType reports "html", "pdf", or "unknown" for a document.
// The extension is checked first; if it is missing or unrecognized the
// file signature is sniffed.
func DetectFileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	}

	f, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	start := strings.ToLower(string(head[:n]))

	if strings.HasPrefix(start, "%pdf") {
		return "pdf"
	}
	if strings.Contains(start, "<html") || strings.Contains(start, "<!doctype") {
		return "html"
	}
	return "unknown"
}
