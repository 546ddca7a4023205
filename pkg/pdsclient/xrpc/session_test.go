package xrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func testSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()
	did, err := pdsclient.ParseDid("did:plc:abc123")
	require.NoError(t, err)
	return newSession(NewTransport(testBase(t, srv)), did, pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken("access-token"),
		Refresh: pdsclient.NewRefreshToken("refresh-token"),
	})
}

func TestRefreshReplacesTokensAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer refresh-token", r.Header.Get("Authorization"))
		require.Equal(t, int64(0), r.ContentLength)
		_ = json.NewEncoder(w).Encode(refreshOutput{AccessJwt: "new-access", RefreshJwt: "new-refresh"})
	}))
	defer srv.Close()

	sess := testSession(t, srv)
	require.NoError(t, sess.Refresh(context.Background()))
	require.Equal(t, "new-access", sess.AccessToken().Export())
	require.Equal(t, "new-refresh", sess.RefreshToken().Export())
}

func TestCloneSharesTokenCell(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(refreshOutput{AccessJwt: "new-access", RefreshJwt: "new-refresh"})
	}))
	defer srv.Close()

	sess := testSession(t, srv)
	clone := sess.Clone()

	require.NoError(t, sess.Refresh(context.Background()))
	require.Equal(t, "new-access", clone.AccessToken().Export())
}

func TestCreateRecordParsesReturnedUri(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/com.atproto.repo.createRecord", r.URL.Path)
		_ = json.NewEncoder(w).Encode(recordEnvelope{
			URI: "at://did:plc:abc123/app.bsky.feed.post/self",
			CID: "bafyabc",
		})
	}))
	defer srv.Close()

	sess := testSession(t, srv)
	collection, err := pdsclient.ParseNsid("app.bsky.feed.post")
	require.NoError(t, err)
	rkey, err := pdsclient.ParseRkey("self")
	require.NoError(t, err)
	rv, err := pdsclient.WithType("app.bsky.feed.post", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)

	uri, err := sess.CreateRecord(context.Background(), collection, rkey, rv)
	require.NoError(t, err)
	require.Equal(t, "at://did:plc:abc123/app.bsky.feed.post/self", uri.String())
}

func TestListRecordsDecodesEnvelopes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "did:plc:abc123", r.URL.Query().Get("repo"))
		_ = json.NewEncoder(w).Encode(listRecordsOutput{
			Records: []recordEnvelope{
				{URI: "at://did:plc:abc123/app.bsky.feed.post/1", CID: "bafy1", Value: map[string]interface{}{"$type": "app.bsky.feed.post"}},
			},
			Cursor: "1",
		})
	}))
	defer srv.Close()

	sess := testSession(t, srv)
	collection, err := pdsclient.ParseNsid("app.bsky.feed.post")
	require.NoError(t, err)

	out, err := sess.ListRecords(context.Background(), sess.Did(), collection, 0, "")
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	require.Equal(t, "1", out.Cursor)
}
