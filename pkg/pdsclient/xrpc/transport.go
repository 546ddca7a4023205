// Package xrpc implements the remote HTTPS backend: request construction
// against <pds>/xrpc/<method>, bearer auth, and XRPC error envelope parsing.
package xrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// Transport issues XRPC requests against one PDS base URL.
type Transport struct {
	base       pdsclient.PdsUrl
	httpClient *http.Client
}

// NewTransport constructs a Transport for base, using an http.Client with the
// library defaults, which set no timeout; requests are bounded only by the
// caller's ctx (the core applies no implicit retries or backoff).
func NewTransport(base pdsclient.PdsUrl) *Transport {
	return &Transport{
		base:       base,
		httpClient: &http.Client{},
	}
}

// envelope is the XRPC error body shape: {"error": "...", "message": "..."}.
type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Query performs a GET request with URL-encoded parameters and decodes the
// 2xx JSON body into out.
func (t *Transport) Query(ctx context.Context, method string, params url.Values, accessToken string, out interface{}) error {
	reqURL := t.base.XrpcUrl(method)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return pdsclient.NewTransportError("building query request", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return t.do(req, out)
}

// Procedure performs a POST request. If body is nil, no request body is
// sent at all (not even "{}") — some PDS implementations, notably around
// session refresh, reject an empty JSON object.
func (t *Transport) Procedure(ctx context.Context, method string, body interface{}, accessToken string, out interface{}) error {
	reqURL := t.base.XrpcUrl(method)

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return pdsclient.NewTransportError("encoding request body", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, reader)
	if err != nil {
		return pdsclient.NewTransportError("building procedure request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return t.do(req, out)
}

func (t *Transport) do(req *http.Request, out interface{}) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return pdsclient.NewTransportError(fmt.Sprintf("request to %s failed", req.URL.Path), err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pdsclient.NewTransportError("reading response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.errorFromResponse(resp.StatusCode, rawBody)
	}

	if out == nil || len(rawBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return pdsclient.NewProtocolError("malformed response body", resp.StatusCode, "", err)
	}
	return nil
}

func (t *Transport) errorFromResponse(status int, rawBody []byte) error {
	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil || env.Error == "" {
		// Non-JSON or unstructured error body: surface raw body as the message.
		return pdsclient.NewProtocolError(string(rawBody), status, "", nil)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return pdsclient.NewAuthError(env.Message)
	}
	return pdsclient.NewProtocolError(env.Message, status, env.Error, nil)
}

// Base returns the PdsUrl this transport is scoped to.
func (t *Transport) Base() pdsclient.PdsUrl { return t.base }
