package runtime

import "fmt"

// ToolOutputCap is the 32 KiB cap imposed on every persisted
// tool-role message.
const ToolOutputCap = 32768

const truncationMarker = "\n…[truncated %d characters]…\n"

// TruncateToolOutput enforces a 75%-head/25%-tail split: when s
// exceeds ToolOutputCap characters, it is cut down to the cap with a
// visible marker in between, keeping roughly three-quarters of the
// budget for the head and one-quarter for the tail. Truncation is
// applied before persistence, so the stored and the LLM-visible text
// are identical.
func TruncateToolOutput(s string) string {
	if len(s) <= ToolOutputCap {
		return s
	}

	dropped := len(s) - ToolOutputCap
	marker := fmt.Sprintf(truncationMarker, dropped)
	remaining := ToolOutputCap - len(marker)
	if remaining < 0 {
		// Pathological case: the cap is smaller than the marker itself.
		return s[:ToolOutputCap]
	}

	headLen := remaining * 3 / 4
	tailLen := remaining - headLen
	return s[:headLen] + marker + s[len(s)-tailLen:]
}
