package xrpc

import (
	"context"
	"errors"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func init() {
	pdsclient.RegisterBackend("https", openPds)
	pdsclient.RegisterBackend("http", openPds)
}

func openPds(url pdsclient.PdsUrl) (pdsclient.Pds, error) {
	return &Pds{transport: NewTransport(url)}, nil
}

// Pds is the XRPC-backed implementation of pdsclient.Pds.
type Pds struct {
	transport *Transport
}

// Open constructs an XRPC-backed Pds directly, bypassing scheme dispatch.
func Open(url pdsclient.PdsUrl) (*Pds, error) {
	return &Pds{transport: NewTransport(url)}, nil
}

// URL returns the server this handle is scoped to.
func (p *Pds) URL() pdsclient.PdsUrl { return p.transport.Base() }

type createSessionInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionOutput struct {
	Did        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Login calls com.atproto.server.createSession.
func (p *Pds) Login(ctx context.Context, creds pdsclient.Credentials) (pdsclient.Session, error) {
	var out createSessionOutput
	err := p.transport.Procedure(ctx, "com.atproto.server.createSession", createSessionInput{
		Identifier: creds.Identifier,
		Password:   creds.Secret,
	}, "", &out)
	if err != nil {
		var pErr *pdsclient.Error
		if errors.As(err, &pErr) && pErr.Kind == pdsclient.KindProtocol {
			return nil, pdsclient.NewAuthError("login rejected: " + pErr.Message)
		}
		return nil, err
	}

	did, err := pdsclient.ParseDid(out.Did)
	if err != nil {
		return nil, pdsclient.NewProtocolError("server returned invalid did", 0, "", err)
	}

	return newSession(p.transport, did, pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken(out.AccessJwt),
		Refresh: pdsclient.NewRefreshToken(out.RefreshJwt),
	}), nil
}

// Restore reconstructs a Session from previously exported tokens without
// calling the server.
func (p *Pds) Restore(ctx context.Context, did pdsclient.Did, tokens pdsclient.TokenPair) (pdsclient.Session, error) {
	return newSession(p.transport, did, tokens), nil
}

type createAccountInput struct {
	Handle     string `json:"handle"`
	Password   string `json:"password"`
	Email      string `json:"email,omitempty"`
	InviteCode string `json:"inviteCode,omitempty"`
}

type createAccountOutput struct {
	Did        string `json:"did"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// CreateAccount calls com.atproto.server.createAccount.
func (p *Pds) CreateAccount(ctx context.Context, handle, password, email, invite string) (pdsclient.CreateAccountResult, error) {
	var out createAccountOutput
	err := p.transport.Procedure(ctx, "com.atproto.server.createAccount", createAccountInput{
		Handle:     handle,
		Password:   password,
		Email:      email,
		InviteCode: invite,
	}, "", &out)
	if err != nil {
		return pdsclient.CreateAccountResult{}, err
	}

	did, err := pdsclient.ParseDid(out.Did)
	if err != nil {
		return pdsclient.CreateAccountResult{}, pdsclient.NewProtocolError("server returned invalid did", 0, "", err)
	}

	return pdsclient.CreateAccountResult{
		Did:          did,
		AccessToken:  pdsclient.NewAccessToken(out.AccessJwt),
		RefreshToken: pdsclient.NewRefreshToken(out.RefreshJwt),
	}, nil
}

type deleteAccountInput struct {
	Did      string `json:"did"`
	Password string `json:"password"`
}

// DeleteAccount calls com.atproto.server.deleteAccount. purgeRecords has no
// effect for the remote backend: the server owns record cleanup semantics.
func (p *Pds) DeleteAccount(ctx context.Context, did pdsclient.Did, password string, purgeRecords bool) error {
	return p.transport.Procedure(ctx, "com.atproto.server.deleteAccount", deleteAccountInput{
		Did:      did.String(),
		Password: password,
	}, "", nil)
}

// Firehose opens a WebSocket subscription to com.atproto.sync.subscribeRepos.
func (p *Pds) Firehose(ctx context.Context, opts pdsclient.FirehoseOptions) (pdsclient.Firehose, error) {
	return dialFirehose(ctx, p.transport.Base(), opts)
}
