// Package ai is the boundary to hosted large-language-model APIs: building
// a prompt context from a project, calling a provider, and parsing the
// returned code blocks into file records.
//
// The package never writes to the store itself — it hands parsed files back
// to the generation service, which routes every write through the store's
// single upsert path. That keeps file identity stable no matter which model
// produced the content.
package ai

import "context"

// Request is one generation call.
type Request struct {
	// Prompt is the user's instruction, verbatim.
	Prompt string
	// Context is the project snapshot to ground the model in; nil for
	// project-less generations ("build me a todo app" from the dashboard).
	Context *ProjectContext
}

// Result is the raw model output plus attribution for the usage log.
type Result struct {
	Text  string
	Model string
}

// Provider is a hosted model API. Implementations are plain HTTP clients;
// any failure (network, auth, quota, malformed response) is returned as an
// apperror.Upstream so the handler layer maps it to 502 without inspecting
// provider-specific details.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// systemPrompt instructs the model to answer in the fenced-block format
// ParseGeneratedFiles understands. Both providers send it unchanged.
const systemPrompt = `You are a senior web developer working inside a project editor.
When you create or modify files, emit each complete file as a fenced code block
whose info line is the language followed by the file path, for example:

` + "```jsx src/App.jsx" + `
...full file content...
` + "```" + `

Always emit complete files, never diffs or fragments. Keep explanatory prose
outside the code blocks.`
