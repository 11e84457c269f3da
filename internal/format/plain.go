package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pkt.systems/agentpanel/schema"
)

// MaxCommandRunes is the longest Bash command shown before truncation.
const MaxCommandRunes = 40

type toolFormatter func(name string, input map[string]any) (string, bool)

var toolFormatters = map[string]toolFormatter{
	"Edit":      filePathTool,
	"Write":     filePathTool,
	"Read":      filePathTool,
	"Bash":      bashTool,
	"Grep":      fixedTool("[Searching...]"),
	"Glob":      fixedTool("[Searching...]"),
	"TodoWrite": fixedTool("[Updating tasks...]"),
}

// FormatToolUse renders a tool invocation as a single activity line.
func FormatToolUse(name string, input map[string]any) string {
	if format, ok := toolFormatters[name]; ok {
		if line, ok := format(name, input); ok {
			return line
		}
	}
	return "[" + name + "]"
}

func filePathTool(name string, input map[string]any) (string, bool) {
	path, ok := stringField(input, "file_path")
	if !ok {
		return "", false
	}
	return fmt.Sprintf("[%s: %s]", name, path), true
}

func bashTool(_ string, input map[string]any) (string, bool) {
	command, ok := stringField(input, "command")
	if !ok {
		return "", false
	}
	return "[$ " + truncateRunes(command, MaxCommandRunes) + "]", true
}

func fixedTool(line string) toolFormatter {
	return func(string, map[string]any) (string, bool) {
		return line, true
	}
}

func stringField(input map[string]any, key string) (string, bool) {
	if input == nil {
		return "", false
	}
	value, ok := input[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func truncateRunes(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max]) + "..."
}

// PlainRenderer turns agent events into transcript text.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// ActivityLines implements core.Renderer.
func (p *PlainRenderer) ActivityLines(event schema.StreamEvent) []string {
	return ToolUseLines(event)
}

// ResultText implements core.Renderer.
func (p *PlainRenderer) ResultText(event schema.StreamEvent) (string, bool) {
	return ResultText(event)
}

// ToolUseLines returns one activity line per tool_use block of an assistant event.
func ToolUseLines(event schema.StreamEvent) []string {
	if event.Type != schema.EventAssistant || event.Message == nil {
		return nil
	}
	var lines []string
	for _, block := range event.Message.Content {
		if block.Type != schema.BlockToolUse {
			continue
		}
		lines = append(lines, FormatToolUse(block.Name, block.Input))
	}
	return lines
}

// ResultText returns the text that replaces the pending placeholder and
// whether the exchange ended in error. The answer is only shown for a
// successful result; permission denials are always listed.
func ResultText(event schema.StreamEvent) (string, bool) {
	var lines []string
	if event.Subtype == schema.ResultSuccess && event.Result != "" {
		lines = append(lines, event.Result)
	}
	for _, denial := range event.PermissionDenials {
		lines = append(lines, fmt.Sprintf("[Permission denied: %s]", denial.ToolName))
	}
	return strings.Join(lines, "\n"), !event.Succeeded()
}
