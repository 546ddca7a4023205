package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// firehoseLine is one line of firehose.jsonl, the on-disk firehose log format.
type firehoseLine struct {
	URI   string                 `json:"uri"`
	Time  string                 `json:"time"`
	Op    string                 `json:"op"`
	Value map[string]interface{} `json:"value,omitempty"`
}

// store implements the record write protocol against one <root>/pds/ tree.
type store struct {
	root   string
	layout *layout
	lock   *flock.Flock
}

func newStore(root string) *store {
	l := newLayout(root)
	return &store{
		root:   root,
		layout: l,
		lock:   flock.New(l.firehoseLockFile()),
	}
}

// placeholderCid derives a deterministic, non-cryptographic-in-the-protocol-
// sense placeholder CID from content hashing. Not content-addressed in a
// protocol-compatible way — consumers relying on CID stability across
// backends should not do so.
func placeholderCid(value map[string]interface{}) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", pdsclient.NewTransportError("hashing record for placeholder cid", err)
	}
	sum := sha256.Sum256(raw)
	return "bafy" + hex.EncodeToString(sum[:])[:32], nil
}

// generateRkey mints a timestamp-based record key from the current system
// clock in microseconds, hex-formatted, within the rkey character class.
func generateRkey() pdsclient.Rkey {
	micros := time.Now().UnixMicro()
	key, err := pdsclient.ParseRkey(strconv.FormatInt(micros, 16))
	if err != nil {
		// hex digits are always valid rkey characters; unreachable.
		panic("generateRkey: generated an invalid rkey: " + err.Error())
	}
	return key
}

// createRecord writes a record file, then appends exactly one firehose
// create event under the exclusive lock. If rkey is zero-value, one is
// generated.
func (s *store) createRecord(did string, collection pdsclient.Nsid, rkey pdsclient.Rkey, value map[string]interface{}) (pdsclient.AtUri, string, error) {
	if rkey.String() == "" {
		rkey = generateRkey()
	}

	dir := s.layout.collectionDir(did, collection)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return pdsclient.AtUri{}, "", pdsclient.NewTransportError("creating collection directory", err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return pdsclient.AtUri{}, "", pdsclient.NewTransportError("encoding record", err)
	}

	target := s.layout.recordFile(did, collection, rkey)
	if err := writeAtomic(target, raw); err != nil {
		return pdsclient.AtUri{}, "", err
	}

	didVal, err := pdsclient.ParseDid(did)
	if err != nil {
		return pdsclient.AtUri{}, "", err
	}
	uri := pdsclient.NewAtUri(didVal, collection, rkey)

	cid, err := placeholderCid(value)
	if err != nil {
		return pdsclient.AtUri{}, "", err
	}

	if err := s.appendFirehoseEvent(firehoseLine{
		URI:   uri.String(),
		Time:  time.Now().UTC().Format(time.RFC3339),
		Op:    "create",
		Value: value,
	}); err != nil {
		// The record file is already on disk; the caller learns the
		// firehose is inconsistent with the repo and may re-drive.
		return pdsclient.AtUri{}, "", err
	}

	return uri, cid, nil
}

// getRecord reads one record file verbatim (no envelope).
func (s *store) getRecord(uri pdsclient.AtUri) (pdsclient.Record, error) {
	target := s.layout.recordFile(uri.Did().String(), uri.Collection(), uri.Rkey())
	raw, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return pdsclient.Record{}, pdsclient.NewProtocolError("record not found", 404, "", nil)
		}
		return pdsclient.Record{}, pdsclient.NewTransportError("reading record file", err)
	}

	var rv pdsclient.RecordValue
	if err := json.Unmarshal(raw, &rv); err != nil {
		return pdsclient.Record{}, err
	}

	cid, err := placeholderCid(rv.AsValue())
	if err != nil {
		return pdsclient.Record{}, err
	}

	return pdsclient.Record{URI: uri, CID: cid, Value: rv}, nil
}

// listRecords enumerates a collection directory, sorted filename ascending,
// paged by cursor (last-seen rkey) and limit. Default limit is 50; when the
// returned count equals limit, the cursor is non-empty.
func (s *store) listRecords(repo string, collection pdsclient.Nsid, limit int, cursor string) (pdsclient.ListRecordsOutput, error) {
	if limit <= 0 {
		limit = 50
	}

	dir := s.layout.collectionDir(repo, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return pdsclient.ListRecordsOutput{}, nil
		}
		return pdsclient.ListRecordsOutput{}, pdsclient.NewTransportError("listing collection directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	start := 0
	if cursor != "" {
		// Skip up to and including the cursor value.
		start = sort.SearchStrings(names, cursor)
		if start < len(names) && names[start] == cursor {
			start++
		}
	}

	repoDid, err := pdsclient.ParseDid(repo)
	if err != nil {
		return pdsclient.ListRecordsOutput{}, err
	}

	var records []pdsclient.Record
	lastName := ""
	for i := start; i < len(names) && len(records) < limit; i++ {
		rkey, err := pdsclient.ParseRkey(names[i])
		if err != nil {
			continue
		}
		uri := pdsclient.NewAtUri(repoDid, collection, rkey)
		rec, err := s.getRecord(uri)
		if err != nil {
			continue
		}
		records = append(records, rec)
		lastName = names[i]
	}

	out := pdsclient.ListRecordsOutput{Records: records}
	if len(records) == limit && lastName != "" {
		out.Cursor = lastName
	}
	return out, nil
}

// deleteRecord removes the record file (idempotent) and appends a delete
// event under the same lock discipline, regardless of whether the file existed.
func (s *store) deleteRecord(uri pdsclient.AtUri) error {
	target := s.layout.recordFile(uri.Did().String(), uri.Collection(), uri.Rkey())
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return pdsclient.NewTransportError("removing record file", err)
	}

	return s.appendFirehoseEvent(firehoseLine{
		URI:  uri.String(),
		Time: time.Now().UTC().Format(time.RFC3339),
		Op:   "delete",
	})
}

// purgeRepo removes the entire repos/<did>/ subtree, emitting one delete
// event per removed record.
func (s *store) purgeRepo(did string) error {
	repoDir := s.layout.repoDir(did)
	collectionsDir := filepath.Join(repoDir, "collections")

	collections, err := os.ReadDir(collectionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pdsclient.NewTransportError("listing repo collections", err)
	}

	repoDidVal, err := pdsclient.ParseDid(did)
	if err != nil {
		return err
	}

	for _, col := range collections {
		if !col.IsDir() {
			continue
		}
		collection, err := pdsclient.ParseNsid(col.Name())
		if err != nil {
			continue
		}
		records, err := os.ReadDir(filepath.Join(collectionsDir, col.Name()))
		if err != nil {
			continue
		}
		for _, rec := range records {
			if rec.IsDir() || !strings.HasSuffix(rec.Name(), ".json") {
				continue
			}
			rkey, err := pdsclient.ParseRkey(strings.TrimSuffix(rec.Name(), ".json"))
			if err != nil {
				continue
			}
			uri := pdsclient.NewAtUri(repoDidVal, collection, rkey)
			if err := s.deleteRecord(uri); err != nil {
				return err
			}
		}
	}

	if err := os.RemoveAll(repoDir); err != nil {
		return pdsclient.NewTransportError("removing repo directory", err)
	}
	return nil
}

// appendFirehoseEvent acquires the cross-process exclusive lock, appends
// exactly one newline-terminated JSON line in a single write, flushes and
// syncs, then releases the lock. The lock is held only across this step,
// never across unrelated I/O, and is released on every exit path.
func (s *store) appendFirehoseEvent(line firehoseLine) error {
	if err := os.MkdirAll(s.layout.root, 0700); err != nil {
		return pdsclient.NewTransportError("creating pds root directory", err)
	}

	raw, err := json.Marshal(line)
	if err != nil {
		return pdsclient.NewTransportError("encoding firehose event", err)
	}
	raw = append(raw, '\n')

	lockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = fmt.Errorf("timed out acquiring firehose lock")
		}
		return pdsclient.NewTransportError("acquiring firehose lock", err)
	}
	defer s.lock.Unlock()

	f, err := os.OpenFile(s.layout.firehoseFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return pdsclient.NewTransportError("opening firehose log", err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return pdsclient.NewTransportError("appending firehose event", err)
	}
	if err := f.Sync(); err != nil {
		return pdsclient.NewTransportError("syncing firehose log", err)
	}
	return nil
}

// writeAtomic writes data to a temporary sibling of target, flushes, then
// renames over target — atomic on POSIX, best-effort on Windows.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return pdsclient.NewTransportError("creating temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pdsclient.NewTransportError("writing temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pdsclient.NewTransportError("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return pdsclient.NewTransportError("closing temp file", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return pdsclient.NewTransportError("setting temp file mode", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return pdsclient.NewTransportError("renaming into place", err)
	}
	return nil
}
