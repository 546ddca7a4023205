package filestore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient/internal/tokencodec"
)

// Session is the filesystem-backed implementation of pdsclient.Session.
// Like the XRPC session, clones share a single RWMutex-guarded token cell.
type Session struct {
	store *store
	did   pdsclient.Did
	cell  *tokenCell
}

type tokenCell struct {
	mu     sync.RWMutex
	tokens pdsclient.TokenPair
}

func (c *tokenCell) get() pdsclient.TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

func (c *tokenCell) set(t pdsclient.TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = t
}

func newSession(s *store, did pdsclient.Did, tokens pdsclient.TokenPair) *Session {
	return &Session{store: s, did: did, cell: &tokenCell{tokens: tokens}}
}

// Did returns the authenticated repo's DID.
func (s *Session) Did() pdsclient.Did { return s.did }

// Pds returns the file:// URL this session is bound to.
func (s *Session) Pds() pdsclient.PdsUrl {
	url, _ := pdsclient.ParsePdsUrl("file://" + s.store.root)
	return url
}

// AccessToken returns current access token material for persistence.
func (s *Session) AccessToken() pdsclient.AccessToken { return s.cell.get().Access }

// RefreshToken returns current refresh token material for persistence.
func (s *Session) RefreshToken() pdsclient.RefreshToken { return s.cell.get().Refresh }

// Clone returns a handle sharing this session's token cell.
func (s *Session) Clone() *Session {
	return &Session{store: s.store, did: s.did, cell: s.cell}
}

// verifyToken re-reads the account and checks the token's encoded hash
// against the currently stored hash, so password changes invalidate
// outstanding tokens. Returns the verified DID on success.
func (s *Session) verifyToken(tok pdsclient.AccessToken) (string, error) {
	did, hash, err := tokencodec.DecodeFileToken(tok.Export())
	if err != nil {
		return "", pdsclient.NewAuthError("invalid token")
	}
	acc, err := s.store.layout.readAccountByDid(did)
	if err != nil {
		return "", err
	}
	if acc.PasswordHash != hash {
		return "", pdsclient.NewAuthError("token no longer valid: password changed")
	}
	return did, nil
}

// Refresh re-derives a token from stored account data, verifying the
// current token is still valid in the process.
func (s *Session) Refresh(ctx context.Context) error {
	current := s.cell.get()
	did, err := s.verifyToken(current.Access)
	if err != nil {
		return err
	}
	acc, err := s.store.layout.readAccountByDid(did)
	if err != nil {
		return err
	}
	token := tokencodec.EncodeFileToken(acc.Did, acc.PasswordHash)
	s.cell.set(pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken(token),
		Refresh: pdsclient.NewRefreshToken(token),
	})
	return nil
}

// IsExpired is always false for the file backend: tokens are invalidated
// by password change, not by time, and carry no expiry of their own.
func (s *Session) IsExpired(ctx context.Context) bool { return false }

// ListRecords lists any repo's collection; reads require no authorization
// check beyond holding a token that still matches a live account.
func (s *Session) ListRecords(ctx context.Context, repo pdsclient.Did, collection pdsclient.Nsid, limit int, cursor string) (pdsclient.ListRecordsOutput, error) {
	if _, err := s.verifyToken(s.cell.get().Access); err != nil {
		return pdsclient.ListRecordsOutput{}, err
	}
	return s.store.listRecords(repo.String(), collection, limit, cursor)
}

// GetRecord reads any repo's record.
func (s *Session) GetRecord(ctx context.Context, uri pdsclient.AtUri) (pdsclient.Record, error) {
	if _, err := s.verifyToken(s.cell.get().Access); err != nil {
		return pdsclient.Record{}, err
	}
	return s.store.getRecord(uri)
}

// CreateRecord writes a record into this session's own repo. The target repo
// is always the session's own DID, and a token whose DID differs from the
// session's DID is rejected with Auth.
func (s *Session) CreateRecord(ctx context.Context, collection pdsclient.Nsid, rkey pdsclient.Rkey, value pdsclient.RecordValue) (pdsclient.AtUri, error) {
	did, err := s.verifyToken(s.cell.get().Access)
	if err != nil {
		return pdsclient.AtUri{}, err
	}
	if did != s.did.String() {
		return pdsclient.AtUri{}, pdsclient.NewAuthError("token does not match session repo")
	}
	uri, _, err := s.store.createRecord(did, collection, rkey, value.AsValue())
	return uri, err
}

// CreateRecordRaw accepts pre-serialized JSON and returns the stored record
// re-serialized in the XRPC response envelope shape.
func (s *Session) CreateRecordRaw(ctx context.Context, collection pdsclient.Nsid, rkey pdsclient.Rkey, valueJSON []byte) ([]byte, error) {
	did, err := s.verifyToken(s.cell.get().Access)
	if err != nil {
		return nil, err
	}
	if did != s.did.String() {
		return nil, pdsclient.NewAuthError("token does not match session repo")
	}

	var value map[string]interface{}
	if err := json.Unmarshal(valueJSON, &value); err != nil {
		return nil, pdsclient.NewInvalidInputError("record value must be valid JSON object: " + err.Error())
	}
	uri, cid, err := s.store.createRecord(did, collection, rkey, value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"uri": uri.String(), "cid": cid})
}

// DeleteRecord removes a record in this session's own repo. Writing
// (deleting) outside the session's repo fails with Auth.
func (s *Session) DeleteRecord(ctx context.Context, uri pdsclient.AtUri) error {
	did, err := s.verifyToken(s.cell.get().Access)
	if err != nil {
		return err
	}
	if did != s.did.String() || uri.Did().String() != did {
		return pdsclient.NewAuthError("cannot delete records in another repo")
	}
	return s.store.deleteRecord(uri)
}

// SubscribeRepos pulls events from a Firehose until handler returns false.
func (s *Session) SubscribeRepos(ctx context.Context, handler func(pdsclient.RepoEvent) bool) error {
	fh, err := openFirehose(s.store.layout, pdsclient.FirehoseOptions{})
	if err != nil {
		return err
	}
	defer fh.Close()

	for {
		event, ok, err := fh.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !handler(event) {
			return nil
		}
	}
}
