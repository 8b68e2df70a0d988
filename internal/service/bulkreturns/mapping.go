package bulkreturns

import (
	"strings"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

// Display-string mappings shared by templates, filenames and the upload
// summary. Pure functions, no state.

var statusDisplayNames = map[returns.Status]string{
	returns.StatusDue:       "Due",
	returns.StatusReceived:  "Received",
	returns.StatusCompleted: "Complete",
	returns.StatusVoid:      "Void",
}

// StatusString returns the display name for a return status
func StatusString(status returns.Status) string {
	if name, ok := statusDisplayNames[status]; ok {
		return name
	}
	return string(status)
}

// PurposeString joins a return's abstraction purposes into the single
// template cell value, deduplicated and in first-seen order.
func PurposeString(purposes []string) string {
	seen := map[string]bool{}
	var out []string
	for _, p := range purposes {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// yesNo renders the template's Y/N cells
func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
