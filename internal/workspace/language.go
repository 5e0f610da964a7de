package workspace

import (
	"path/filepath"
	"strings"
)

// languageByExt is the fixed extension → language tag table used by both the
// re-import path and AI-context scanning. Unknown extensions fall back to
// the generic "text" tag — never an error.
var languageByExt = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".go":   "go",
	".css":  "css",
	".html": "html",
	".htm":  "html",
	".json": "json",
	".md":   "markdown",
	".yml":  "yaml",
	".yaml": "yaml",
	".sh":   "shell",
	".sql":  "sql",
}

// LanguageForPath infers a language tag from a file path's extension.
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "text"
}
