package tools

import "github.com/rcliao/hierarchical-memory-engine/internal/model"

// stringArg extracts a string argument from a tool call, returning
// defaultVal if the key is missing or not a string.
func stringArg(call model.ToolCall, key, defaultVal string) string {
	v, ok := call.Arguments[key].(string)
	if !ok {
		return defaultVal
	}
	return v
}

// intArg extracts an integer argument. JSON numbers decode as
// float64, matching the teacher's memtools helpers.
func intArg(call model.ToolCall, key string, defaultVal int) int {
	v, ok := call.Arguments[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument.
func boolArg(call model.ToolCall, key string, defaultVal bool) bool {
	v, ok := call.Arguments[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
