package model

import "time"

// Audit actions recorded after the backend accepts a mutation.
const (
	ActionImport         = "import"
	ActionUpdateRow      = "update_row"
	ActionDeleteRow      = "delete_row"
	ActionExport         = "export"
	ActionSavePaper      = "save_paper"
	ActionDeletePaper    = "delete_paper"
	ActionUpdateQuestion = "update_question"
	ActionDeleteQuestion = "delete_question"
)

// AuditEntry is one journaled console action.
type AuditEntry struct {
	ID     int64     `json:"id"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	At     time.Time `json:"at"`
}
