// Package session parses the JSON document the prompt host pipes to stdin.
// Every field is optional; a document that fails to parse yields the zero
// value so the renderer can still emit an (empty) line.
package session

import (
	"encoding/json"
	"io"
)

type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Workspace struct {
	CurrentDir string `json:"current_dir"`
	ProjectDir string `json:"project_dir"`
}

type Cost struct {
	TotalCostUSD       *float64 `json:"total_cost_usd"`
	TotalDurationMS    *int64   `json:"total_duration_ms"`
	TotalAPIDurationMS *int64   `json:"total_api_duration_ms"`
	TotalLinesAdded    *int64   `json:"total_lines_added"`
	TotalLinesRemoved  *int64   `json:"total_lines_removed"`
}

type CurrentUsage struct {
	InputTokens              *int64 `json:"input_tokens"`
	OutputTokens             *int64 `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens"`
}

type ContextWindow struct {
	TotalInputTokens    *int64        `json:"total_input_tokens"`
	TotalOutputTokens   *int64        `json:"total_output_tokens"`
	ContextWindowSize   *int64        `json:"context_window_size"`
	UsedPercentage      *float64      `json:"used_percentage"`
	RemainingPercentage *float64      `json:"remaining_percentage"`
	CurrentUsage        *CurrentUsage `json:"current_usage"`
}

type OutputStyle struct {
	Name string `json:"name"`
}

// Document is the session state handed to the renderer.
type Document struct {
	HookEventName  string        `json:"hook_event_name"`
	SessionID      string        `json:"session_id"`
	TranscriptPath string        `json:"transcript_path"`
	CWD            string        `json:"cwd"`
	Version        string        `json:"version"`
	Model          Model         `json:"model"`
	Workspace      Workspace     `json:"workspace"`
	Cost           Cost          `json:"cost"`
	ContextWindow  ContextWindow `json:"context_window"`
	OutputStyle    OutputStyle   `json:"output_style"`
}

// Parse reads one document from r. Read or decode failures produce an empty
// document, never an error.
func Parse(r io.Reader) Document {
	var doc Document
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}
	}
	return doc
}
