// Package filestore implements the local filesystem backend: a repo-centric
// on-disk layout, a cross-process-safe append-only firehose log, a
// filesystem-watch-driven event stream, and password-hashed local accounts
// whose token surface matches the remote backend.
package filestore

import (
	"path/filepath"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// layout resolves the on-disk paths rooted at <root>/pds/.
type layout struct {
	root string
}

func newLayout(root string) *layout {
	return &layout{root: filepath.Join(root, "pds")}
}

func (l *layout) accountFile(did string) string {
	return filepath.Join(l.root, "accounts", did, "account.json")
}

func (l *layout) accountDir(did string) string {
	return filepath.Join(l.root, "accounts", did)
}

func (l *layout) repoDir(did string) string {
	return filepath.Join(l.root, "repos", did)
}

func (l *layout) collectionDir(did string, collection pdsclient.Nsid) string {
	return filepath.Join(l.root, "repos", did, "collections", collection.String())
}

func (l *layout) recordFile(did string, collection pdsclient.Nsid, rkey pdsclient.Rkey) string {
	return filepath.Join(l.collectionDir(did, collection), rkey.String()+".json")
}

func (l *layout) firehoseFile() string {
	return filepath.Join(l.root, "firehose.jsonl")
}

func (l *layout) firehoseLockFile() string {
	return filepath.Join(l.root, "firehose.lock")
}
