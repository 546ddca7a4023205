package filestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func TestFirehoseObservesCreateAndDelete(t *testing.T) {
	root := t.TempDir()
	s := newStore(root)
	collection := testCollection(t)

	fh, err := openFirehose(s.layout, pdsclient.FirehoseOptions{})
	require.NoError(t, err)
	defer fh.Close()

	uri, _, err := s.createRecord("did:plc:abc123", collection, pdsclient.Rkey{}, map[string]interface{}{
		"$type": "app.bsky.feed.post",
		"text":  "hello",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, ok, err := fh.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pdsclient.RepoEventCommit, event.Kind)
	require.Equal(t, "did:plc:abc123", event.Repo)
	require.Len(t, event.Ops, 1)
	require.Equal(t, "create", event.Ops[0].Action)

	require.NoError(t, s.deleteRecord(uri))

	event, ok, err = fh.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "delete", event.Ops[0].Action)
}

func TestFirehoseCursorAdvances(t *testing.T) {
	root := t.TempDir()
	s := newStore(root)
	collection := testCollection(t)

	fh, err := openFirehose(s.layout, pdsclient.FirehoseOptions{})
	require.NoError(t, err)
	defer fh.Close()

	require.EqualValues(t, 0, fh.Cursor())

	_, _, err = s.createRecord("did:plc:abc123", collection, pdsclient.Rkey{}, map[string]interface{}{"$type": "app.bsky.feed.post"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, ok, err := fh.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, fh.Cursor())
}

func TestFirehoseClosedStopsDelivery(t *testing.T) {
	root := t.TempDir()
	s := newStore(root)
	fh, err := openFirehose(s.layout, pdsclient.FirehoseOptions{})
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok, err := fh.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
