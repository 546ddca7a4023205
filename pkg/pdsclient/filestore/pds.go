package filestore

import (
	"context"
	"time"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient/internal/tokencodec"
)

func init() {
	pdsclient.RegisterBackend("file", openPds)
}

func openPds(url pdsclient.PdsUrl) (pdsclient.Pds, error) {
	path, err := url.ToFilePath()
	if err != nil {
		return nil, err
	}
	return &Pds{url: url, store: newStore(path)}, nil
}

// Pds is the filesystem-backed implementation of pdsclient.Pds.
type Pds struct {
	url   pdsclient.PdsUrl
	store *store
}

// Open constructs a filesystem-backed Pds directly, bypassing scheme dispatch.
func Open(url pdsclient.PdsUrl) (*Pds, error) {
	path, err := url.ToFilePath()
	if err != nil {
		return nil, err
	}
	return &Pds{url: url, store: newStore(path)}, nil
}

// URL returns the file:// URL this handle is scoped to.
func (p *Pds) URL() pdsclient.PdsUrl { return p.url }

// Login verifies the supplied password against the stored bcrypt hash and
// mints a token pair encoding the DID and the account's current hash.
func (p *Pds) Login(ctx context.Context, creds pdsclient.Credentials) (pdsclient.Session, error) {
	acc, err := p.store.layout.findAccountByHandle(creds.Identifier)
	if err != nil {
		return nil, err
	}
	if err := verifyPassword(acc.PasswordHash, creds.Secret); err != nil {
		return nil, err
	}

	did, err := pdsclient.ParseDid(acc.Did)
	if err != nil {
		return nil, err
	}

	token := tokencodec.EncodeFileToken(acc.Did, acc.PasswordHash)
	return newSession(p.store, did, pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken(token),
		Refresh: pdsclient.NewRefreshToken(token),
	}), nil
}

// Restore reconstructs a Session from previously exported tokens. The
// tokens are re-verified against the account store on first use, not here.
func (p *Pds) Restore(ctx context.Context, did pdsclient.Did, tokens pdsclient.TokenPair) (pdsclient.Session, error) {
	return newSession(p.store, did, tokens), nil
}

// CreateAccount mints a did:plc identifier, hashes the password, and
// persists the account, then mints a matching token pair.
func (p *Pds) CreateAccount(ctx context.Context, handle, password, email, invite string) (pdsclient.CreateAccountResult, error) {
	did := mintDid()
	hash, err := hashPassword(password)
	if err != nil {
		return pdsclient.CreateAccountResult{}, err
	}

	acc := account{
		Did:          did.String(),
		Handle:       handle,
		CreatedAt:    time.Now().UTC(),
		PasswordHash: hash,
	}
	if err := p.store.layout.writeAccount(acc); err != nil {
		return pdsclient.CreateAccountResult{}, err
	}

	token := tokencodec.EncodeFileToken(acc.Did, acc.PasswordHash)
	return pdsclient.CreateAccountResult{
		Did:          did,
		AccessToken:  pdsclient.NewAccessToken(token),
		RefreshToken: pdsclient.NewRefreshToken(token),
	}, nil
}

// DeleteAccount verifies the password, then removes account metadata and,
// if purgeRecords is set, the account's entire repo subtree.
func (p *Pds) DeleteAccount(ctx context.Context, did pdsclient.Did, password string, purgeRecords bool) error {
	acc, err := p.store.layout.readAccountByDid(did.String())
	if err != nil {
		return err
	}
	if err := verifyPassword(acc.PasswordHash, password); err != nil {
		return err
	}

	if purgeRecords {
		if err := p.store.purgeRepo(did.String()); err != nil {
			return err
		}
	}

	return removeAccountDir(p.store.layout, did.String())
}

// Firehose opens an fsnotify-driven tail of firehose.jsonl.
func (p *Pds) Firehose(ctx context.Context, opts pdsclient.FirehoseOptions) (pdsclient.Firehose, error) {
	return openFirehose(p.store.layout, opts)
}
