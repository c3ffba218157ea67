package model

// CourseIssue is a diagnostic raised while generating or preparing a variant.
// Fatal issues mark the resulting variant as broken.
type CourseIssue struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Fatal   bool           `json:"fatal"`
}

// HasFatal reports whether any issue in the list is fatal.
func HasFatal(issues []CourseIssue) bool {
	for _, issue := range issues {
		if issue.Fatal {
			return true
		}
	}
	return false
}
