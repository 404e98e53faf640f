package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCallFromText(t *testing.T) {
	t.Run("json code block", func(t *testing.T) {
		text := "I'll read the file.\n```json\n{\"tool\": \"read_file\", \"args\": {\"path\": \"main.go\"}}\n```"
		call := ParseToolCallFromText(text)
		require.NotNil(t, call)
		assert.Equal(t, "read_file", call.Name)
		assert.Equal(t, "main.go", call.Args["path"])
	})

	t.Run("plain code block", func(t *testing.T) {
		text := "```\n{\"name\": \"list_dir\", \"args\": {}}\n```"
		call := ParseToolCallFromText(text)
		require.NotNil(t, call)
		assert.Equal(t, "list_dir", call.Name)
	})

	t.Run("bare json object", func(t *testing.T) {
		text := `Here you go: {"tool": "glob_files", "args": {"pattern": "**/*.go"}}`
		call := ParseToolCallFromText(text)
		require.NotNil(t, call)
		assert.Equal(t, "glob_files", call.Name)
		assert.Equal(t, "**/*.go", call.Args["pattern"])
	})

	t.Run("braces inside strings ignored", func(t *testing.T) {
		text := `{"tool": "write_file", "args": {"path": "a.go", "content": "func main() { fmt.Println(\"}\") }"}}`
		call := ParseToolCallFromText(text)
		require.NotNil(t, call)
		assert.Equal(t, "write_file", call.Name)
	})

	t.Run("missing args defaults to empty map", func(t *testing.T) {
		call := ParseToolCallFromText(`{"tool": "list_dir"}`)
		require.NotNil(t, call)
		assert.NotNil(t, call.Args)
		assert.Empty(t, call.Args)
	})

	t.Run("no call in plain text", func(t *testing.T) {
		assert.Nil(t, ParseToolCallFromText("The file contains three functions."))
	})

	t.Run("json without tool name", func(t *testing.T) {
		assert.Nil(t, ParseToolCallFromText(`{"path": "a.txt"}`))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ParseToolCallFromText(""))
	})

	t.Run("invalid json skipped", func(t *testing.T) {
		assert.Nil(t, ParseToolCallFromText("{not json at all}"))
	})
}

func TestFindJSONObjects(t *testing.T) {
	objects := findJSONObjects(`first {"a": 1} then {"b": {"c": 2}} end`)
	require.Len(t, objects, 2)
	assert.Equal(t, `{"a": 1}`, objects[0])
	assert.Equal(t, `{"b": {"c": 2}}`, objects[1])
}
