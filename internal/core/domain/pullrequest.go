package domain

import "regexp"

// ticketRE matches JIRA-style ticket ids (e.g. RDKB-1234) in PR titles.
var ticketRE = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// PullRequest holds the PR metadata used for summary generation. The PR
// description body is deliberately absent: only metadata and diff stats are
// ever placed in a prompt, which keeps untrusted free text out of the model
// context.
type PullRequest struct {
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	BaseBranch   string `json:"base_branch"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`

	// TicketIDs are issue-tracker ids referenced by the PR title.
	TicketIDs []string `json:"ticket_ids,omitempty"`

	// EventID identifies the webhook delivery that carried this PR event,
	// used as the idempotency key for outbound notifications.
	EventID string `json:"event_id,omitempty"`
}

// ExtractTicketIDs finds issue-tracker ids in a title.
func ExtractTicketIDs(title string) []string {
	return ticketRE.FindAllString(title, -1)
}
