package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// sessionFile is the on-disk shape persisted at cfg.SessionFile, holding
// exactly what Pds.Restore needs to reconstruct a Session without
// re-authenticating.
type sessionFile struct {
	PdsURL       string `json:"pds_url"`
	Did          string `json:"did"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func sessionFilePath() (string, error) {
	path := cfg.SessionFile
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return path, nil
}

func saveSession(sess pdsclient.Session) error {
	path, err := sessionFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	sf := sessionFile{
		PdsURL:       sess.Pds().String(),
		Did:          sess.Did().String(),
		AccessToken:  sess.AccessToken().Export(),
		RefreshToken: sess.RefreshToken().Export(),
	}
	raw, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

func loadSession() (pdsclient.Session, error) {
	path, err := sessionFilePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf sessionFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, err
	}

	url, err := pdsclient.ParsePdsUrl(sf.PdsURL)
	if err != nil {
		return nil, err
	}
	did, err := pdsclient.ParseDid(sf.Did)
	if err != nil {
		return nil, err
	}

	pds, err := pdsclient.Open(url)
	if err != nil {
		return nil, err
	}

	return pds.Restore(rootContext(), did, pdsclient.TokenPair{
		Access:  pdsclient.NewAccessToken(sf.AccessToken),
		Refresh: pdsclient.NewRefreshToken(sf.RefreshToken),
	})
}
