package feed

import "strings"

const (
	progressCap   = 95
	progressStart = 5
	progressDone  = 100

	genericStepTitle = "Working on the next step…"
	genericStepIcon  = "sparkles"
)

type friendlyTool struct {
	Title string
	Icon  string
}

var friendlyTools = map[string]friendlyTool{
	"web_search":             {Title: "Searching the web for answers…", Icon: "search"},
	"web_extract":            {Title: "Reading a web page…", Icon: "globe"},
	"read":                   {Title: "Looking through files…", Icon: "file-text"},
	"read_multi":             {Title: "Reviewing several documents…", Icon: "files"},
	"write":                  {Title: "Writing up results…", Icon: "pen-line"},
	"edit":                   {Title: "Making some edits…", Icon: "pen-line"},
	"grep":                   {Title: "Searching for something specific…", Icon: "search"},
	"find":                   {Title: "Looking for the right files…", Icon: "folder-search"},
	"bash":                   {Title: "Running a quick check…", Icon: "terminal"},
	"slack_reply":            {Title: "Sending you an update…", Icon: "send"},
	"run_subagent":           {Title: "Bringing in a specialist…", Icon: "users"},
	"human_ask":              {Title: "Needs your input…", Icon: "message-circle"},
	"memory_read_working":    {Title: "Checking memory…", Icon: "brain"},
	"memory_write_working":   {Title: "Saving progress…", Icon: "save"},
	"memory_store_knowledge": {Title: "Remembering this for later…", Icon: "bookmark"},
	"deep_research_railway":  {Title: "Starting deep research…", Icon: "microscope"},
	"computer_use":           {Title: "Working on the computer…", Icon: "monitor"},
	"ls":                     {Title: "Browsing folders…", Icon: "folder"},
}

// Translate maps a decoded event and the run's current progress onto a
// user-facing activity. It returns nil for events that produce no activity.
// now (unix ms) is used when the event carries no timestamp.
func Translate(evt DecodedEvent, currentProgress int, now int64) *ActivityItem {
	ts := evt.TS
	if ts == 0 {
		ts = now
	}

	item := &ActivityItem{
		ID:        evt.ID,
		RunID:     evt.RunID,
		Timestamp: ts,
		Phase:     PhaseWorking,
		Title:     genericStepTitle,
		Icon:      genericStepIcon,
	}
	active := true

	switch evt.Type {
	case EventRunStart:
		item.Phase = PhaseQueued
		item.Title = "Starting to work on your request…"
		item.Icon = "rocket"
		item.Progress = intPtr(progressStart)

	case EventLLMStart:
		item.Phase = PhaseUnderstanding
		item.Title = "Thinking about your request…"
		item.Icon = "brain"
		item.Progress = advance(currentProgress, 5)

	case EventLLMDone:
		item.Title = "Figured out the next step…"
		item.Icon = "lightbulb"
		item.Progress = advance(currentProgress, 5)
		active = false

	case EventToolStart:
		friendly, ok := friendlyTools[evt.ToolName]
		if !ok {
			friendly = friendlyTool{Title: genericStepTitle, Icon: genericStepIcon}
		}
		item.Title = firstNonEmpty(evt.ToolName, friendly.Title)
		item.Description = friendly.Title
		item.Icon = friendly.Icon
		item.ToolName = evt.ToolName
		item.ToolArgs = evt.ToolArgs
		item.Progress = advance(currentProgress, 3)

	case EventToolDone:
		friendly, ok := friendlyTools[evt.ToolName]
		if !ok {
			friendly = friendlyTool{Title: "Completed a step"}
		}
		done := strings.Replace(friendly.Title, "…", " ✓", 1)
		item.Title = firstNonEmpty(evt.ToolName, done)
		item.Description = done
		item.Icon = "check"
		item.ToolName = evt.ToolName
		item.ToolArgs = evt.ToolArgs
		item.Progress = advance(currentProgress, 5)
		active = false

	case EventToolError:
		// Transient: the agent retries, so progress holds and the step stays active.
		item.Title = "Hit a small bump — working around it…"
		item.Icon = "alert-triangle"
		item.Progress = intPtr(currentProgress)

	case EventSubagentSpawn:
		item.Title = "A specialist is helping out…"
		item.Icon = "users"
		item.Progress = advance(currentProgress, 5)

	case EventSubagentDone:
		item.Title = "Specialist finished their part ✓"
		item.Icon = "user-check"
		item.Progress = advance(currentProgress, 10)
		active = false

	case EventRunDone:
		active = false
		if succeeded(evt.Status) {
			item.Phase = PhaseComplete
			item.Title = "All done! ✓"
			item.Icon = "check-circle"
			item.Progress = intPtr(progressDone)
		} else {
			item.Phase = PhaseError
			item.Title = "Something went wrong — we're on it"
			item.Icon = "alert-triangle"
			item.Progress = intPtr(currentProgress)
		}

	default:
		return nil
	}

	item.IsActive = &active
	return item
}

func succeeded(status string) bool {
	return status == "ok" || status == "done"
}

// advance bumps progress by delta, capped below completion.
func advance(current, delta int) *int {
	return intPtr(min(current+delta, progressCap))
}

func intPtr(v int) *int {
	return &v
}
