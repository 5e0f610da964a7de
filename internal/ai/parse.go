package ai

import (
	"path"
	"strings"

	"github.com/sakif/appforge/internal/workspace"
)

// GeneratedFile is one file extracted from a model response, ready to be
// applied through the store's upsert path.
type GeneratedFile struct {
	Path     string
	Content  string
	Language string
}

// fenceLangs maps fence info tags to our language tags where they differ
// from the extension table's output.
var fenceLangs = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"javascript": "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"typescript": "typescript",
	"py":         "python",
	"python":     "python",
	"css":        "css",
	"html":       "html",
	"json":       "json",
	"md":         "markdown",
	"markdown":   "markdown",
	"yml":        "yaml",
	"yaml":       "yaml",
}

// ParseGeneratedFiles extracts file blocks from a model response.
//
// The system prompt asks for fenced blocks whose info line is
// "<lang> <path>", but models drift, so two fallbacks are accepted:
//   - a path alone on the info line ("```src/App.jsx")
//   - a path in the nearest preceding prose line ("### src/App.jsx",
//     "**src/App.jsx**", "File: src/App.jsx")
//
// Blocks with no resolvable path are dropped — they are prose examples,
// not files. Output order matches response order; the generation service
// applies them in that order.
func ParseGeneratedFiles(response string) []GeneratedFile {
	lines := strings.Split(response, "\n")

	var files []GeneratedFile
	var lastHeading string

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if !strings.HasPrefix(trimmed, "```") {
			if trimmed != "" {
				lastHeading = headingPath(trimmed)
			}
			continue
		}

		// Fence opened — read the info line, then collect until the
		// closing fence (or end of input on a truncated response).
		info := strings.Fields(strings.TrimPrefix(trimmed, "```"))

		var lang, filePath string
		if len(info) > 0 {
			if looksLikePath(info[0]) {
				filePath = info[0]
			} else {
				lang = info[0]
			}
		}
		if filePath == "" && len(info) > 1 && looksLikePath(info[1]) {
			filePath = info[1]
		}
		if filePath == "" && looksLikePath(lastHeading) {
			filePath = lastHeading
		}

		var body []string
		for i++; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "```" {
				break
			}
			body = append(body, lines[i])
		}
		lastHeading = ""

		if filePath == "" {
			continue
		}

		filePath = path.Clean(strings.TrimPrefix(filePath, "/"))
		if filePath == "." || strings.HasPrefix(filePath, "..") {
			continue
		}

		content := strings.Join(body, "\n")
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		language, ok := fenceLangs[strings.ToLower(lang)]
		if !ok {
			language = workspace.LanguageForPath(filePath)
		}

		files = append(files, GeneratedFile{
			Path:     filePath,
			Content:  content,
			Language: language,
		})
	}

	return files
}

// headingPath strips markdown decoration from a prose line and returns the
// remainder if it could be a path ("### `src/App.jsx`" → "src/App.jsx").
func headingPath(line string) string {
	s := strings.Trim(line, "#*`_ \t")
	for _, prefix := range []string{"File:", "file:", "FILE:"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	s = strings.Trim(s, "`*")
	if looksLikePath(s) {
		return s
	}
	return ""
}

// looksLikePath is a heuristic: one token, no spaces, and either a slash or
// a dot-extension. "javascript" fails it; "src/App.jsx" and "Makefile.am"
// pass.
func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	return strings.Contains(s, "/") || strings.Contains(path.Base(s), ".")
}
