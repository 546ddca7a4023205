package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// account is the file backend's on-disk account record: handle, did,
// created-at, and a bcrypt password hash.
type account struct {
	Did          string    `json:"did"`
	Handle       string    `json:"handle"`
	CreatedAt    time.Time `json:"created_at"`
	PasswordHash string    `json:"password_hash"`
}

func mintDid() pdsclient.Did {
	// did:plc identifiers are normally derived from a signing key; this
	// backend has no PLC directory to register with, so it mints an opaque
	// unique suffix instead.
	id := uuid.New().String()
	did, err := pdsclient.ParseDid("did:plc:" + id)
	if err != nil {
		// uuid.New() is always syntactically valid here; this path is unreachable.
		panic("mintDid: generated an invalid did: " + err.Error())
	}
	return did
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", pdsclient.NewTransportError("hashing password", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return pdsclient.NewAuthError("invalid credentials")
	}
	return nil
}

func (l *layout) readAccountByDid(did string) (account, error) {
	raw, err := os.ReadFile(l.accountFile(did))
	if err != nil {
		if os.IsNotExist(err) {
			return account{}, pdsclient.NewAuthError("account not found")
		}
		return account{}, pdsclient.NewTransportError("reading account file", err)
	}
	var acc account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return account{}, pdsclient.NewTransportError("decoding account file", err)
	}
	return acc, nil
}

// findAccountByHandle scans accounts/ for a matching handle. Account count
// per local store is expected to be small (dev/test/local-first use), so a
// directory scan is acceptable; a handle index is not worth the added
// complexity at this scale.
func (l *layout) findAccountByHandle(handle string) (account, error) {
	entries, err := os.ReadDir(filepath.Join(l.root, "accounts"))
	if err != nil {
		if os.IsNotExist(err) {
			return account{}, pdsclient.NewAuthError("invalid credentials")
		}
		return account{}, pdsclient.NewTransportError("listing accounts", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		acc, err := l.readAccountByDid(entry.Name())
		if err != nil {
			continue
		}
		if acc.Handle == handle {
			return acc, nil
		}
	}
	return account{}, pdsclient.NewAuthError("invalid credentials")
}

func (l *layout) writeAccount(acc account) error {
	if err := os.MkdirAll(l.accountDir(acc.Did), 0700); err != nil {
		return pdsclient.NewTransportError("creating account directory", err)
	}
	raw, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return pdsclient.NewTransportError("encoding account", err)
	}
	if err := os.WriteFile(l.accountFile(acc.Did), raw, 0600); err != nil {
		return pdsclient.NewTransportError("writing account file", err)
	}
	return nil
}

func removeAccountDir(l *layout, did string) error {
	if err := os.RemoveAll(l.accountDir(did)); err != nil {
		return pdsclient.NewTransportError("removing account directory", err)
	}
	return nil
}
