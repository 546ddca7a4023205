package pdsclient

import "context"

// Pds is a handle scoped to one server, satisfied by either the XRPC
// backend or the filesystem backend. Selection is deterministic and total
// over the PdsUrl scheme (see Open).
type Pds interface {
	// Login authenticates against the PDS, returning a Session on success.
	// Fails with KindAuth on rejected credentials.
	Login(ctx context.Context, creds Credentials) (Session, error)

	// Restore reconstructs a Session from previously exported tokens,
	// without re-authenticating.
	Restore(ctx context.Context, did Did, tokens TokenPair) (Session, error)

	// CreateAccount provisions a new account. invite and email are optional
	// (pass "" when absent).
	CreateAccount(ctx context.Context, handle, password, email, invite string) (CreateAccountResult, error)

	// DeleteAccount removes an account after password verification. When
	// purgeRecords is true, all of the account's records are removed too.
	DeleteAccount(ctx context.Context, did Did, password string, purgeRecords bool) error

	// Firehose opens an event stream. Does not require authentication.
	Firehose(ctx context.Context, opts FirehoseOptions) (Firehose, error)

	// URL returns the PdsUrl this handle is scoped to.
	URL() PdsUrl
}

// CreateAccountResult is returned by Pds.CreateAccount.
type CreateAccountResult struct {
	Did          Did
	AccessToken  AccessToken
	RefreshToken RefreshToken
}

// Session binds exactly one DID to exactly one PDS. It is cheap to clone:
// clones share reference-counted state guarded by a reader-writer lock, so
// no caller ever observes a partially refreshed token pair.
type Session interface {
	Did() Did
	Pds() PdsUrl

	// AccessToken/RefreshToken return current opaque token material for persistence.
	AccessToken() AccessToken
	RefreshToken() RefreshToken

	// Refresh atomically replaces the token pair. For the XRPC backend this
	// calls the server's refresh endpoint with no request body at all. For
	// the file backend this re-derives a token from stored account data.
	Refresh(ctx context.Context) error

	// IsExpired is an advisory, non-blocking check; the core never consults
	// it to drive automatic refresh. Callers decide when to call Refresh.
	IsExpired(ctx context.Context) bool

	// ListRecords lists records in collection belonging to repo (any DID
	// may be read). limit<=0 selects the backend default; cursor=""
	// starts from the beginning.
	ListRecords(ctx context.Context, repo Did, collection Nsid, limit int, cursor string) (ListRecordsOutput, error)

	// GetRecord fetches a single record by its AtUri.
	GetRecord(ctx context.Context, uri AtUri) (Record, error)

	// CreateRecord creates a record in this session's own repo. rkey=""
	// requests a generated key.
	CreateRecord(ctx context.Context, collection Nsid, rkey Rkey, value RecordValue) (AtUri, error)

	// CreateRecordRaw is the escape hatch accepting pre-serialized JSON,
	// for callers that need the raw XRPC response shape.
	CreateRecordRaw(ctx context.Context, collection Nsid, rkey Rkey, valueJSON []byte) ([]byte, error)

	// DeleteRecord removes a record. Idempotent: deleting a missing record
	// succeeds and still emits one firehose delete event.
	DeleteRecord(ctx context.Context, uri AtUri) error

	// SubscribeRepos is the legacy callback surface, equivalent to pulling
	// events from a Firehose until handler returns false.
	SubscribeRepos(ctx context.Context, handler func(RepoEvent) bool) error
}

// FirehoseOptions configures a firehose subscription.
type FirehoseOptions struct {
	// Cursor optionally seeks to a past sequence number, if the backend supports it.
	Cursor int64
}

// Firehose is a lazy, finite sequence of repo events. It exclusively owns
// its underlying connection or watcher and background task; dropping it
// (calling Close) terminates that background work promptly.
type Firehose interface {
	// Next blocks until an event is available, the stream ends, or ctx is
	// cancelled. ok is false once the stream is exhausted (socket closed,
	// watcher stopped, or Close was called).
	Next(ctx context.Context) (event RepoEvent, ok bool, err error)

	// Cursor returns the last delivered sequence number (not durable across restarts).
	Cursor() int64

	// Close releases the underlying connection or watcher.
	Close() error
}
