package xrpc

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient/internal/tokencodec"
)

// tokenCell is the reference-counted, reader-writer-locked token state
// shared by a Session and all of its clones. Refresh replaces both tokens
// atomically under the write lock so no reader ever observes a half-updated pair.
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

// Session is the XRPC-backed implementation of pdsclient.Session.
type Session struct {
	transport *Transport
	did       pdsclient.Did
	cell      *tokenCell
}

func newSession(transport *Transport, did pdsclient.Did, tokens pdsclient.TokenPair) *Session {
	return &Session{
		transport: transport,
		did:       did,
		cell:      &tokenCell{tokens: tokens},
	}
}

// Did returns the authenticated repo's DID.
func (s *Session) Did() pdsclient.Did { return s.did }

// Pds returns the server this session is bound to.
func (s *Session) Pds() pdsclient.PdsUrl { return s.transport.Base() }

// AccessToken returns current access token material for persistence.
func (s *Session) AccessToken() pdsclient.AccessToken { return s.cell.get().Access }

// RefreshToken returns current refresh token material for persistence.
func (s *Session) RefreshToken() pdsclient.RefreshToken { return s.cell.get().Refresh }

// IsExpired is an advisory, non-blocking check derived from the access
// token's "exp" claim. The core never consults this itself and never
// refreshes automatically; callers decide whether to call Refresh before
// an operation.
func (s *Session) IsExpired(ctx context.Context) bool {
	claims, err := tokencodec.PeekClaims(ctx, s.cell.get().Access.Export())
	if err != nil {
		return false
	}
	return time.Now().Unix() >= claims.ExpiresAt
}

// Clone returns a handle sharing this session's token cell: refreshing one
// is observed atomically by the other.
func (s *Session) Clone() *Session {
	return &Session{transport: s.transport, did: s.did, cell: s.cell}
}

type refreshOutput struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Refresh calls com.atproto.server.refreshSession using the refresh token
// as bearer credential, with no request body at all — some PDS
// implementations reject even an empty JSON object.
func (s *Session) Refresh(ctx context.Context) error {
	current := s.cell.get()

	var out refreshOutput
	err := s.transport.Procedure(ctx, "com.atproto.server.refreshSession", nil, current.Refresh.Export(), &out)
	if err != nil {
		return err
	}

	s.cell.set(pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken(out.AccessJwt),
		Refresh: pdsclient.NewRefreshToken(out.RefreshJwt),
	})
	return nil
}

type recordEnvelope struct {
	URI   string      `json:"uri"`
	CID   string      `json:"cid"`
	Value interface{} `json:"value"`
}

type listRecordsOutput struct {
	Records []recordEnvelope `json:"records"`
	Cursor  string           `json:"cursor,omitempty"`
}

// ListRecords calls com.atproto.repo.listRecords, passing limit and cursor unchanged.
func (s *Session) ListRecords(ctx context.Context, repo pdsclient.Did, collection pdsclient.Nsid, limit int, cursor string) (pdsclient.ListRecordsOutput, error) {
	params := url.Values{}
	params.Set("repo", repo.String())
	params.Set("collection", collection.String())
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var out listRecordsOutput
	if err := s.transport.Query(ctx, "com.atproto.repo.listRecords", params, s.cell.get().Access.Export(), &out); err != nil {
		return pdsclient.ListRecordsOutput{}, err
	}

	records := make([]pdsclient.Record, 0, len(out.Records))
	for _, env := range out.Records {
		rec, err := decodeRecordEnvelope(env)
		if err != nil {
			return pdsclient.ListRecordsOutput{}, err
		}
		records = append(records, rec)
	}

	return pdsclient.ListRecordsOutput{Records: records, Cursor: out.Cursor}, nil
}

// GetRecord calls com.atproto.repo.getRecord.
func (s *Session) GetRecord(ctx context.Context, uri pdsclient.AtUri) (pdsclient.Record, error) {
	params := url.Values{}
	params.Set("repo", uri.Did().String())
	params.Set("collection", uri.Collection().String())
	params.Set("rkey", uri.Rkey().String())

	var env recordEnvelope
	if err := s.transport.Query(ctx, "com.atproto.repo.getRecord", params, s.cell.get().Access.Export(), &env); err != nil {
		return pdsclient.Record{}, err
	}
	return decodeRecordEnvelope(env)
}

type createRecordInput struct {
	Repo       string      `json:"repo"`
	Collection string      `json:"collection"`
	Rkey       string      `json:"rkey,omitempty"`
	Record     interface{} `json:"record"`
}

// CreateRecord calls com.atproto.repo.createRecord in this session's own repo.
func (s *Session) CreateRecord(ctx context.Context, collection pdsclient.Nsid, rkey pdsclient.Rkey, value pdsclient.RecordValue) (pdsclient.AtUri, error) {
	var out recordEnvelope
	err := s.transport.Procedure(ctx, "com.atproto.repo.createRecord", createRecordInput{
		Repo:       s.did.String(),
		Collection: collection.String(),
		Rkey:       rkey.String(),
		Record:     value.AsValue(),
	}, s.cell.get().Access.Export(), &out)
	if err != nil {
		return pdsclient.AtUri{}, err
	}
	return pdsclient.ParseAtUri(out.URI)
}

// CreateRecordRaw accepts a pre-serialized JSON record value and returns the
// raw response body, for callers that need the unparsed XRPC response shape.
func (s *Session) CreateRecordRaw(ctx context.Context, collection pdsclient.Nsid, rkey pdsclient.Rkey, valueJSON []byte) ([]byte, error) {
	var rawRecord interface{}
	if err := json.Unmarshal(valueJSON, &rawRecord); err != nil {
		return nil, pdsclient.NewInvalidInputError("record value must be valid JSON: " + err.Error())
	}

	var out json.RawMessage
	err := s.transport.Procedure(ctx, "com.atproto.repo.createRecord", createRecordInput{
		Repo:       s.did.String(),
		Collection: collection.String(),
		Rkey:       rkey.String(),
		Record:     rawRecord,
	}, s.cell.get().Access.Export(), &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type deleteRecordInput struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Rkey       string `json:"rkey"`
}

// DeleteRecord calls com.atproto.repo.deleteRecord.
func (s *Session) DeleteRecord(ctx context.Context, uri pdsclient.AtUri) error {
	return s.transport.Procedure(ctx, "com.atproto.repo.deleteRecord", deleteRecordInput{
		Repo:       uri.Did().String(),
		Collection: uri.Collection().String(),
		Rkey:       uri.Rkey().String(),
	}, s.cell.get().Access.Export(), nil)
}

// SubscribeRepos pulls events from a Firehose opened against this session's
// PDS until handler returns false.
func (s *Session) SubscribeRepos(ctx context.Context, handler func(pdsclient.RepoEvent) bool) error {
	fh, err := dialFirehose(ctx, s.transport.Base(), pdsclient.FirehoseOptions{})
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

func decodeRecordEnvelope(env recordEnvelope) (pdsclient.Record, error) {
	uri, err := pdsclient.ParseAtUri(env.URI)
	if err != nil {
		return pdsclient.Record{}, pdsclient.NewProtocolError("server returned invalid uri", 0, "", err)
	}

	valueBytes, err := json.Marshal(env.Value)
	if err != nil {
		return pdsclient.Record{}, pdsclient.NewProtocolError("malformed record value", 0, "", err)
	}
	var rv pdsclient.RecordValue
	if err := json.Unmarshal(valueBytes, &rv); err != nil {
		return pdsclient.Record{}, err
	}

	return pdsclient.Record{URI: uri, CID: env.CID, Value: rv}, nil
}
