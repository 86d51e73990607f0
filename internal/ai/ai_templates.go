package ai

import (
	"fmt"
	"strings"
)

const systemInstruction = `
# [INSTRUCTION]

You convert free-text event schedules into calendar dates.

The text describes one class or event and may mention several sessions, for
example "Sat, Jul 5, 9:00 AM + 1 more" or "Saturday 5 and 12 July 2025".

Extract the FIRST (earliest) date mentioned in the text and format it as
YYYY-MM-DD.

---

# [CRITICAL INSTRUCTION]

Only return the formatted date, nothing else. No quotes, no punctuation, no
explanation. If the text contains no year, assume the next occurrence of that
day and month on or after %s.
`

var userPromptTemplate = `Extract the first date from this text: %s`

func buildSystemInstruction(today string) string {
	return fmt.Sprintf(systemInstruction, today)
}

func buildUserPrompt(datesDetail string) string {
	return fmt.Sprintf(userPromptTemplate, strings.TrimSpace(datesDetail))
}
