package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

// firehose tails firehose.jsonl with fsnotify, converting each appended
// line into a RepoEvent and fanning it into a bounded channel that Next
// drains. One watcher per subscriber: subscriptions are not fanned out
// from a shared reader, since each subscriber may be at a different cursor.
type firehose struct {
	watcher *fsnotify.Watcher
	file    *os.File
	reader  *bufio.Reader

	events chan pdsclient.RepoEvent
	errs   chan error
	done   chan struct{}

	closeOnce sync.Once
	seqMu     sync.Mutex
	seq       int64
	lastSeq   int64
	partial   string
}

// openFirehose opens firehose.jsonl, seeks to the requested cursor (or to
// the end when opts.Cursor is zero), and starts watching the containing
// directory for the create-on-first-write and subsequent modify events
// firehose.jsonl goes through.
func openFirehose(l *layout, opts pdsclient.FirehoseOptions) (*firehose, error) {
	path := l.firehoseFile()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, pdsclient.NewTransportError("creating pds root directory", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, pdsclient.NewTransportError("opening firehose log", err)
	}

	seq := int64(0)
	if opts.Cursor > 0 {
		seq, err = seekToCursor(f, opts.Cursor)
		if err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, pdsclient.NewTransportError("seeking firehose log", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, pdsclient.NewTransportError("creating firehose watcher", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		f.Close()
		return nil, pdsclient.NewTransportError("watching firehose directory", err)
	}

	fh := &firehose{
		watcher: watcher,
		file:    f,
		reader:  bufio.NewReader(f),
		events:  make(chan pdsclient.RepoEvent, 64),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		seq:     seq,
		lastSeq: seq,
	}
	go fh.pump(path)
	return fh, nil
}

// seekToCursor scans from the start, counting lines, until it has passed
// `cursor` lines; it returns the sequence number reached. This is O(n) in
// log size; cursor replay is not optimized for the local backend.
func seekToCursor(f *os.File, cursor int64) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, pdsclient.NewTransportError("seeking firehose log", err)
	}
	r := bufio.NewReader(f)
	var n, offset int64
	for n < cursor {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, pdsclient.NewTransportError("scanning firehose log", err)
		}
		offset += int64(len(line))
		n++
	}
	// r buffers ahead of the last counted line; put the file offset right
	// after that line so the caller's reader starts at the next one.
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, pdsclient.NewTransportError("seeking firehose log", err)
	}
	return n, nil
}

// pump watches for directory events touching path and reads whatever new
// complete lines have landed since the last read, publishing one RepoEvent
// per line onto fh.events.
func (fh *firehose) pump(path string) {
	defer close(fh.events)
	fh.drain()
	for {
		select {
		case <-fh.done:
			return
		case ev, ok := <-fh.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fh.drain()
		case err, ok := <-fh.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fh.errs <- pdsclient.NewTransportError("watching firehose log", err):
			default:
			}
			return
		}
	}
}

// drain reads every complete line currently available and publishes it.
func (fh *firehose) drain() {
	for {
		line, err := fh.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// A partial write raced the reader: keep the incomplete
				// tail so the next drain completes the line and reads it whole.
				fh.partial += line
			} else {
				select {
				case fh.errs <- pdsclient.NewTransportError("reading firehose log", err):
				default:
				}
			}
			return
		}
		line = fh.partial + line
		fh.partial = ""

		var parsed firehoseLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue // not a parseable JSON line; skip it
		}

		fh.seqMu.Lock()
		fh.seq++
		seq := fh.seq
		fh.seqMu.Unlock()
		event, ok := toRepoEvent(parsed, seq)
		if !ok {
			continue
		}

		select {
		case fh.events <- event:
		case <-fh.done:
			return
		}
	}
}

func toRepoEvent(line firehoseLine, seq int64) (pdsclient.RepoEvent, bool) {
	uri, err := pdsclient.ParseAtUri(line.URI)
	if err != nil {
		return pdsclient.RepoEvent{}, false
	}

	var action string
	switch line.Op {
	case "create":
		action = "create"
	case "delete":
		action = "delete"
	default:
		return pdsclient.RepoEvent{}, false
	}

	ts, err := time.Parse(time.RFC3339, line.Time)
	if err != nil {
		ts = time.Time{}
	}

	cid := ""
	if action == "create" {
		if c, err := placeholderCid(line.Value); err == nil {
			cid = c
		}
	}

	return pdsclient.RepoEvent{
		Kind: pdsclient.RepoEventCommit,
		Repo: uri.Did().String(),
		Seq:  seq,
		Time: ts,
		Ops: []pdsclient.CommitOperation{{
			Path:   uri.Collection().String() + "/" + uri.Rkey().String(),
			Action: action,
			CID:    cid,
		}},
	}, true
}

// Next blocks until an event is available, ctx is cancelled, or the stream
// is closed.
func (fh *firehose) Next(ctx context.Context) (pdsclient.RepoEvent, bool, error) {
	select {
	case <-fh.done:
		return pdsclient.RepoEvent{}, false, nil
	default:
	}
	select {
	case err := <-fh.errs:
		return pdsclient.RepoEvent{}, false, err
	case event, ok := <-fh.events:
		if !ok {
			return pdsclient.RepoEvent{}, false, nil
		}
		fh.seqMu.Lock()
		fh.lastSeq = event.Seq
		fh.seqMu.Unlock()
		return event, true, nil
	case <-ctx.Done():
		return pdsclient.RepoEvent{}, false, ctx.Err()
	case <-fh.done:
		return pdsclient.RepoEvent{}, false, nil
	}
}

// Cursor returns the sequence number of the last event delivered.
func (fh *firehose) Cursor() int64 {
	fh.seqMu.Lock()
	defer fh.seqMu.Unlock()
	return fh.lastSeq
}

// Close stops the watcher and releases the file handle.
func (fh *firehose) Close() error {
	fh.closeOnce.Do(func() {
		close(fh.done)
		fh.watcher.Close()
		fh.file.Close()
	})
	return nil
}
