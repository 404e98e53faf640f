package client

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedToolCall is a tool call extracted from plain text output.
type ParsedToolCall struct {
	Name string
	Args map[string]any
}

// toolCallJSON matches the shapes models emit when asked for JSON tool
// calls: {"tool": "name", "args": {...}} or {"name": "...", "args": {...}}.
type toolCallJSON struct {
	Tool string         `json:"tool"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*\\n?```")

// ParseToolCallFromText attempts to extract a tool call from model text
// output. Used as a fallback for models without native function calling.
// Returns nil when the text contains no recognizable call.
func ParseToolCallFromText(text string) *ParsedToolCall {
	if text == "" {
		return nil
	}

	// JSON code blocks first
	for _, match := range codeBlockPattern.FindAllStringSubmatch(text, -1) {
		if len(match) < 2 {
			continue
		}
		if call := parseToolCallJSON(match[1]); call != nil {
			return call
		}
	}

	// Then bare JSON objects
	for _, obj := range findJSONObjects(text) {
		if call := parseToolCallJSON(obj); call != nil {
			return call
		}
	}

	return nil
}

// parseToolCallJSON parses a single JSON object into a tool call.
func parseToolCallJSON(s string) *ParsedToolCall {
	var tc toolCallJSON
	if err := json.Unmarshal([]byte(s), &tc); err != nil {
		return nil
	}

	name := tc.Tool
	if name == "" {
		name = tc.Name
	}
	if name == "" {
		return nil
	}

	args := tc.Args
	if args == nil {
		args = map[string]any{}
	}
	return &ParsedToolCall{Name: name, Args: args}
}

// findJSONObjects extracts top-level JSON objects from text by matching
// braces, skipping content inside strings.
func findJSONObjects(text string) []string {
	var objects []string

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					objects = append(objects, strings.TrimSpace(text[start:i+1]))
					start = -1
				}
			}
		}
	}

	return objects
}
