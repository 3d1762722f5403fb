package feed

import "strings"

const defaultSpecialist = "Assistant"

// Checked in order; the first role with a matching keyword wins.
var specialistKeywords = []struct {
	role     string
	keywords []string
}{
	{role: "Researcher", keywords: []string{"research", "find", "search"}},
	{role: "Builder", keywords: []string{"write", "create", "build", "implement"}},
	{role: "Troubleshooter", keywords: []string{"fix", "debug", "error"}},
	{role: "Deployer", keywords: []string{"deploy", "ship", "launch"}},
	{role: "Reviewer", keywords: []string{"review", "check", "verify"}},
	{role: "Analyst", keywords: []string{"analyze", "report", "data"}},
}

// Specialist assigns a role label from keywords in the task text.
func Specialist(task string) string {
	t := strings.ToLower(task)
	for _, entry := range specialistKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(t, kw) {
				return entry.role
			}
		}
	}
	return defaultSpecialist
}
