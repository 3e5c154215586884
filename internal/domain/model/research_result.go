package model

// ResearchResult is the structured payload a worker reports for a completed job.
type ResearchResult struct {
	Query          string        `json:"query"`
	Tabs           []ResearchTab `json:"tabs"`
	PrimarySummary string        `json:"primary_summary"`
	ToolsUsed      []string      `json:"tools_used"`
}

type ResearchTab struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}
