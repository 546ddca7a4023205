package xrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// wireFrame is the decoded shape of one subscribeRepos message. The real
// protocol frames these as DAG-CBOR; this backend decodes the JSON-shaped
// projection the rest of the core operates on (CBOR framing is an
// implementation detail of the wire codec, not of the event model).
type wireFrame struct {
	Kind string `json:"$type"`

	Seq  int64  `json:"seq"`
	Repo string `json:"repo"`
	Time string `json:"time"`
	Ops  []struct {
		Path   string `json:"path"`
		Action string `json:"action"`
		CID    string `json:"cid,omitempty"`
	} `json:"ops"`

	Did     string `json:"did"`
	Changes string `json:"changes"`
	Handle  string `json:"handle"`
	Active  bool   `json:"active"`

	Message string `json:"message"`
}

// Firehose is the WebSocket-backed implementation of pdsclient.Firehose.
type Firehose struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	cursor int64
	closed bool
}

func dialFirehose(ctx context.Context, base pdsclient.PdsUrl, opts pdsclient.FirehoseOptions) (*Firehose, error) {
	wsBase, err := base.WebsocketBase()
	if err != nil {
		return nil, err
	}

	url := wsBase + "/xrpc/com.atproto.sync.subscribeRepos"
	if opts.Cursor > 0 {
		url += fmt.Sprintf("?cursor=%d", opts.Cursor)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, pdsclient.NewTransportError("dialing subscribeRepos websocket", err)
	}

	return &Firehose{conn: conn}, nil
}

// Next reads and decodes the next frame, blocking until one arrives or the
// socket closes. ctx cancellation closes the underlying connection.
func (f *Firehose) Next(ctx context.Context) (pdsclient.RepoEvent, bool, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			f.conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	_, raw, err := f.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return pdsclient.RepoEvent{}, false, nil
		}
		return pdsclient.RepoEvent{}, false, pdsclient.NewTransportError("reading firehose frame", err)
	}

	var frame wireFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return pdsclient.RepoEvent{}, false, pdsclient.NewProtocolError("malformed firehose frame", 0, "", err)
	}

	event, err := decodeFrame(frame)
	if err != nil {
		return pdsclient.RepoEvent{}, false, err
	}

	f.mu.Lock()
	if frame.Seq > 0 {
		f.cursor = frame.Seq
	}
	f.mu.Unlock()

	return event, true, nil
}

func decodeFrame(frame wireFrame) (pdsclient.RepoEvent, error) {
	switch frame.Kind {
	case string(pdsclient.RepoEventCommit), "":
		t, err := time.Parse(time.RFC3339, frame.Time)
		if err != nil && frame.Time != "" {
			return pdsclient.RepoEvent{}, pdsclient.NewProtocolError("malformed commit time", 0, "", err)
		}
		ops := make([]pdsclient.CommitOperation, 0, len(frame.Ops))
		for _, op := range frame.Ops {
			ops = append(ops, pdsclient.CommitOperation{Path: op.Path, Action: op.Action, CID: op.CID})
		}
		return pdsclient.RepoEvent{
			Kind: pdsclient.RepoEventCommit,
			Seq:  frame.Seq,
			Repo: frame.Repo,
			Time: t,
			Ops:  ops,
		}, nil
	case string(pdsclient.RepoEventIdentity):
		return pdsclient.RepoEvent{Kind: pdsclient.RepoEventIdentity, Did: frame.Did, Changes: frame.Changes}, nil
	case string(pdsclient.RepoEventHandle):
		return pdsclient.RepoEvent{Kind: pdsclient.RepoEventHandle, Did: frame.Did, Handle: frame.Handle}, nil
	case string(pdsclient.RepoEventAccount):
		return pdsclient.RepoEvent{Kind: pdsclient.RepoEventAccount, Did: frame.Did, Active: frame.Active}, nil
	case string(pdsclient.RepoEventTombstone):
		return pdsclient.RepoEvent{Kind: pdsclient.RepoEventTombstone, Did: frame.Did}, nil
	case string(pdsclient.RepoEventInfo):
		return pdsclient.RepoEvent{Kind: pdsclient.RepoEventInfo, Message: frame.Message}, nil
	default:
		return pdsclient.RepoEvent{}, pdsclient.NewProtocolError("unknown firehose event kind "+frame.Kind, 0, "", nil)
	}
}

// Cursor returns the last delivered sequence number.
func (f *Firehose) Cursor() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Close closes the underlying WebSocket connection.
func (f *Firehose) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.conn.Close()
}
