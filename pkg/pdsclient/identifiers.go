// Package pdsclient provides a capability-based client for AT Protocol
// Personal Data Servers, satisfied by either a remote XRPC server or a
// local filesystem store with identical semantics.
package pdsclient

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Did is a validated Decentralized Identifier: "did:<method>:<id>".
type Did struct {
	value string
}

var didPattern = regexp.MustCompile(`^did:[a-z0-9]+:[a-zA-Z0-9._:%-]+$`)

// ParseDid validates and constructs a Did from its canonical string form.
func ParseDid(s string) (Did, error) {
	if !didPattern.MatchString(s) {
		return Did{}, newInvalidInput("did", s, "must match did:<method>:<id>")
	}
	return Did{value: s}, nil
}

// String returns the canonical string form.
func (d Did) String() string { return d.value }

// IsZero reports whether this Did was never successfully parsed.
func (d Did) IsZero() bool { return d.value == "" }

// Nsid is a reverse-DNS-style namespaced identifier, e.g. "app.bsky.feed.post".
type Nsid struct {
	value string
}

var nsidSegment = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

// ParseNsid validates and constructs an Nsid.
func ParseNsid(s string) (Nsid, error) {
	segments := strings.Split(s, ".")
	if len(segments) < 3 {
		return Nsid{}, newInvalidInput("nsid", s, "must have at least 3 dot-separated segments")
	}
	for _, seg := range segments {
		if !nsidSegment.MatchString(seg) {
			return Nsid{}, newInvalidInput("nsid", s, fmt.Sprintf("invalid segment %q", seg))
		}
	}
	return Nsid{value: s}, nil
}

// String returns the canonical string form.
func (n Nsid) String() string { return n.value }

// Rkey is a record key: 1-512 chars from [a-zA-Z0-9._~-], excluding "." and "..".
type Rkey struct {
	value string
}

var rkeyPattern = regexp.MustCompile(`^[a-zA-Z0-9._~-]{1,512}$`)

// ParseRkey validates and constructs an Rkey.
func ParseRkey(s string) (Rkey, error) {
	if s == "." || s == ".." {
		return Rkey{}, newInvalidInput("rkey", s, "must not be \".\" or \"..\"")
	}
	if !rkeyPattern.MatchString(s) {
		return Rkey{}, newInvalidInput("rkey", s, "must be 1-512 chars from [a-zA-Z0-9._~-]")
	}
	return Rkey{value: s}, nil
}

// String returns the canonical string form.
func (r Rkey) String() string { return r.value }

// AtUri is a structured identifier of the form at://<did>/<nsid>/<rkey>.
type AtUri struct {
	did        Did
	collection Nsid
	rkey       Rkey
}

// ParseAtUri parses "at://<did>/<nsid>/<rkey>" into its typed components.
func ParseAtUri(s string) (AtUri, error) {
	if !strings.HasPrefix(s, "at://") {
		return AtUri{}, newInvalidInput("at-uri", s, "must start with at://")
	}
	rest := strings.TrimPrefix(s, "at://")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return AtUri{}, newInvalidInput("at-uri", s, "must have form at://<did>/<nsid>/<rkey>")
	}

	did, err := ParseDid(parts[0])
	if err != nil {
		return AtUri{}, newInvalidInput("at-uri", s, "invalid did component: "+err.Error())
	}
	collection, err := ParseNsid(parts[1])
	if err != nil {
		return AtUri{}, newInvalidInput("at-uri", s, "invalid nsid component: "+err.Error())
	}
	rkey, err := ParseRkey(parts[2])
	if err != nil {
		return AtUri{}, newInvalidInput("at-uri", s, "invalid rkey component: "+err.Error())
	}

	return AtUri{did: did, collection: collection, rkey: rkey}, nil
}

// NewAtUri builds an AtUri from already-validated components.
func NewAtUri(did Did, collection Nsid, rkey Rkey) AtUri {
	return AtUri{did: did, collection: collection, rkey: rkey}
}

// Did returns the repo DID component.
func (u AtUri) Did() Did { return u.did }

// Collection returns the NSID component.
func (u AtUri) Collection() Nsid { return u.collection }

// Rkey returns the record key component.
func (u AtUri) Rkey() Rkey { return u.rkey }

// String returns the canonical "at://<did>/<nsid>/<rkey>" form.
func (u AtUri) String() string {
	return fmt.Sprintf("at://%s/%s/%s", u.did, u.collection, u.rkey)
}

// PdsUrl is an absolute URL identifying a PDS, scheme in {https, http, file}.
// http is admitted only for loopback hosts; file URLs must carry a path.
type PdsUrl struct {
	raw    *url.URL
	scheme string
}

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
	"[::1]":     true,
}

// ParsePdsUrl validates and constructs a PdsUrl, normalizing away trailing slashes.
func ParsePdsUrl(s string) (PdsUrl, error) {
	u, err := url.Parse(s)
	if err != nil {
		return PdsUrl{}, newInvalidInput("pds-url", s, "not a valid URL: "+err.Error())
	}

	switch u.Scheme {
	case "https":
		// always admitted
	case "http":
		host := u.Hostname()
		if !loopbackHosts[host] {
			return PdsUrl{}, newInvalidInput("pds-url", s, "http scheme requires a loopback host")
		}
	case "file":
		if u.Path == "" {
			return PdsUrl{}, newInvalidInput("pds-url", s, "file URL must carry a path")
		}
	default:
		return PdsUrl{}, newInvalidInput("pds-url", s, "scheme must be https, http, or file")
	}

	u.Path = strings.TrimRight(u.Path, "/")
	return PdsUrl{raw: u, scheme: u.Scheme}, nil
}

// String returns the canonical URL string.
func (p PdsUrl) String() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.String()
}

// IsLocal reports whether this is a file:// URL (the local filesystem backend).
func (p PdsUrl) IsLocal() bool { return p.scheme == "file" }

// XrpcUrl returns "<base>/xrpc/<method>" with exactly one separator.
func (p PdsUrl) XrpcUrl(method string) string {
	base := strings.TrimRight(p.raw.String(), "/")
	return base + "/xrpc/" + strings.TrimLeft(method, "/")
}

// ToFilePath converts a file:// URL to an absolute filesystem path.
func (p PdsUrl) ToFilePath() (string, error) {
	if p.scheme != "file" {
		return "", newInvalidInput("pds-url", p.String(), "not a file:// URL")
	}
	path := p.raw.Path
	if p.raw.Host != "" && p.raw.Host != "localhost" {
		path = "/" + p.raw.Host + path
	}
	return path, nil
}

// WebsocketBase maps https->wss, http->ws for subscription endpoints.
func (p PdsUrl) WebsocketBase() (string, error) {
	switch p.scheme {
	case "https":
		return "wss://" + p.raw.Host + p.raw.Path, nil
	case "http":
		return "ws://" + p.raw.Host + p.raw.Path, nil
	default:
		return "", newInvalidInput("pds-url", p.String(), "no websocket mapping for scheme "+p.scheme)
	}
}

// Scheme returns the URL scheme ("https", "http", or "file").
func (p PdsUrl) Scheme() string { return p.scheme }
