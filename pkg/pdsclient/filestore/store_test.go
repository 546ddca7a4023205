package filestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func testCollection(t *testing.T) pdsclient.Nsid {
	t.Helper()
	nsid, err := pdsclient.ParseNsid("app.bsky.feed.post")
	require.NoError(t, err)
	return nsid
}

func TestCreateAndGetRecord(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)

	uri, cid, err := s.createRecord("did:plc:abc123", collection, pdsclient.Rkey{}, map[string]interface{}{
		"$type": "app.bsky.feed.post",
		"text":  "hello world",
	})
	require.NoError(t, err)
	require.NotEmpty(t, cid)
	require.Equal(t, "did:plc:abc123", uri.Did().String())

	rec, err := s.getRecord(uri)
	require.NoError(t, err)
	require.Equal(t, "hello world", rec.Value.AsValue()["text"])
	require.Equal(t, cid, rec.CID)
}

func TestCreateRecordWithExplicitRkey(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)
	rkey, err := pdsclient.ParseRkey("self")
	require.NoError(t, err)

	uri, _, err := s.createRecord("did:plc:abc123", collection, rkey, map[string]interface{}{"$type": "app.bsky.feed.post"})
	require.NoError(t, err)
	require.Equal(t, "self", uri.Rkey().String())
}

func TestGetRecordNotFound(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)
	did, err := pdsclient.ParseDid("did:plc:abc123")
	require.NoError(t, err)
	rkey, err := pdsclient.ParseRkey("missing")
	require.NoError(t, err)

	_, err = s.getRecord(pdsclient.NewAtUri(did, collection, rkey))
	require.Error(t, err)
}

func TestListRecordsPaginates(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)

	for i := 0; i < 5; i++ {
		rkey, err := pdsclient.ParseRkey(string(rune('a' + i)))
		require.NoError(t, err)
		_, _, err = s.createRecord("did:plc:abc123", collection, rkey, map[string]interface{}{"$type": "app.bsky.feed.post"})
		require.NoError(t, err)
	}

	page, err := s.listRecords("did:plc:abc123", collection, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	require.NotEmpty(t, page.Cursor)

	next, err := s.listRecords("did:plc:abc123", collection, 2, page.Cursor)
	require.NoError(t, err)
	require.Len(t, next.Records, 2)
	require.NotEqual(t, page.Records[0].URI.String(), next.Records[0].URI.String())
}

func TestListRecordsEmptyCollectionReturnsNoError(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)

	out, err := s.listRecords("did:plc:abc123", collection, 10, "")
	require.NoError(t, err)
	require.Empty(t, out.Records)
}

func TestDeleteRecordIsIdempotent(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)

	uri, _, err := s.createRecord("did:plc:abc123", collection, pdsclient.Rkey{}, map[string]interface{}{"$type": "app.bsky.feed.post"})
	require.NoError(t, err)

	require.NoError(t, s.deleteRecord(uri))
	// Deleting again must still succeed.
	require.NoError(t, s.deleteRecord(uri))

	_, err = s.getRecord(uri)
	require.Error(t, err)
}

func TestPurgeRepoRemovesAllRecords(t *testing.T) {
	s := newStore(t.TempDir())
	collection := testCollection(t)

	for i := 0; i < 3; i++ {
		rkey, err := pdsclient.ParseRkey(string(rune('a' + i)))
		require.NoError(t, err)
		_, _, err = s.createRecord("did:plc:abc123", collection, rkey, map[string]interface{}{"$type": "app.bsky.feed.post"})
		require.NoError(t, err)
	}

	require.NoError(t, s.purgeRepo("did:plc:abc123"))

	out, err := s.listRecords("did:plc:abc123", collection, 10, "")
	require.NoError(t, err)
	require.Empty(t, out.Records)
}

// TestConcurrentCreatesProduceExactlyOneWholeLineEach drives N goroutines
// each performing K creates and verifies the firehose log ends up with
// exactly N*K lines, every one complete and newline-terminated: the
// property the flock-guarded append in appendFirehoseEvent exists for.
func TestConcurrentCreatesProduceExactlyOneWholeLineEach(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 20

	s := newStore(t.TempDir())
	collection := testCollection(t)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*perGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				rkey, err := pdsclient.ParseRkey(fmt.Sprintf("g%d-%d", g, i))
				if err != nil {
					errs <- err
					continue
				}
				_, _, err = s.createRecord("did:plc:abc123", collection, rkey, map[string]interface{}{
					"$type": "app.bsky.feed.post",
					"text":  fmt.Sprintf("from goroutine %d iteration %d", g, i),
				})
				if err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	raw, err := os.ReadFile(s.layout.firehoseFile())
	require.NoError(t, err)
	require.Equal(t, byte('\n'), raw[len(raw)-1], "log must end on a newline, not a partial line")

	f, err := os.Open(s.layout.firehoseFile())
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var parsed firehoseLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &parsed), "every line must be one whole, parseable JSON object")
		require.Equal(t, "create", parsed.Op)
		lines++
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, goroutines*perGoroutine, lines)
}

func TestPlaceholderCidIsDeterministic(t *testing.T) {
	value := map[string]interface{}{"$type": "app.bsky.feed.post", "text": "hello"}
	a, err := placeholderCid(value)
	require.NoError(t, err)
	b, err := placeholderCid(value)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
