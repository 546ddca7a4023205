package xrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func testBase(t *testing.T, srv *httptest.Server) pdsclient.PdsUrl {
	t.Helper()
	u, err := pdsclient.ParsePdsUrl(srv.URL)
	require.NoError(t, err)
	return u
}

func TestQueryDecodesSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/com.atproto.repo.getRecord", r.URL.Path)
		require.Equal(t, "did:plc:abc123", r.URL.Query().Get("repo"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"uri": "at://did:plc:abc123/app.bsky.feed.post/self"})
	}))
	defer srv.Close()

	transport := NewTransport(testBase(t, srv))
	params := url.Values{"repo": {"did:plc:abc123"}}

	var out struct {
		URI string `json:"uri"`
	}
	err := transport.Query(context.Background(), "com.atproto.repo.getRecord", params, "", &out)
	require.NoError(t, err)
	require.Equal(t, "at://did:plc:abc123/app.bsky.feed.post/self", out.URI)
}

func TestProcedureSendsNoBodyWhenNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, int64(0), r.ContentLength)
		require.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewTransport(testBase(t, srv))
	err := transport.Procedure(context.Background(), "com.atproto.server.refreshSession", nil, "refresh-token", nil)
	require.NoError(t, err)
}

func TestErrorResponseMapsUnauthorizedToAuthKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "AuthenticationRequired", "message": "token expired"})
	}))
	defer srv.Close()

	transport := NewTransport(testBase(t, srv))
	err := transport.Query(context.Background(), "com.atproto.repo.getRecord", nil, "stale-token", nil)
	require.Error(t, err)

	var pErr *pdsclient.Error
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, pdsclient.KindAuth, pErr.Kind)
}

func TestErrorResponseMapsOtherStatusToProtocolKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "InvalidRequest", "message": "bad collection"})
	}))
	defer srv.Close()

	transport := NewTransport(testBase(t, srv))
	err := transport.Query(context.Background(), "com.atproto.repo.listRecords", nil, "", nil)
	require.Error(t, err)

	var pErr *pdsclient.Error
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, pdsclient.KindProtocol, pErr.Kind)
	require.Equal(t, "InvalidRequest", pErr.XRPCCode)
}
