package jules

// Selector table for the dashboard UI. Targeting leans on ARIA roles and
// visible text because the site's class names are build-mangled; when the
// markup drifts, this table is the only place to touch.
const (
	// Task creation surface.
	selNewTaskButton   = `button:has-text("New Task")`
	selRepoCombo       = `[role="combobox"]`
	selRepoInput       = `[role="combobox"] input`
	selFirstOption     = `[role="option"]`
	selBranchCombo     = `[aria-label*="branch" i]`
	selTaskDescription = `textarea`

	// Task page.
	selChatInput       = `textarea`
	selChatMessage     = `[class*="message-content"]`
	selStatusIndicator = `[class*="status"]`
	selSourceFileLink  = `a[href*="/files/"]`
	selChangeCard      = `[class*="change-summary"]`
	selApproveButton   = `button:has-text("Approve plan")`
	selResumeButton    = `button:has-text("Resume")`
)
