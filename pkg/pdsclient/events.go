package pdsclient

import "time"

// CommitOperation describes one write within a Commit event.
type CommitOperation struct {
	// Path is "<collection>/<rkey>".
	Path string
	// Action is one of "create", "update", "delete".
	Action string
	// CID is the record's content identifier; absent for deletes.
	CID string
}

// RepoEventKind discriminates the RepoEvent sum type.
type RepoEventKind string

const (
	RepoEventCommit    RepoEventKind = "commit"
	RepoEventIdentity  RepoEventKind = "identity"
	RepoEventHandle    RepoEventKind = "handle"
	RepoEventAccount   RepoEventKind = "account"
	RepoEventTombstone RepoEventKind = "tombstone"
	RepoEventInfo      RepoEventKind = "info"
)

// RepoEvent is a single firehose event. Kind discriminates which fields are populated.
type RepoEvent struct {
	Kind RepoEventKind

	// Commit fields.
	Seq  int64
	Repo string
	Time time.Time
	Ops  []CommitOperation

	// Identity/Handle/Account/Tombstone fields.
	Did     string
	Changes string
	Handle  string
	Active  bool

	// Info field.
	Message string
}
