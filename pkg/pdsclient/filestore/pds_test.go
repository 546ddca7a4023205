package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
)

func openTestPds(t *testing.T) *Pds {
	t.Helper()
	url, err := pdsclient.ParsePdsUrl("file://" + t.TempDir())
	require.NoError(t, err)
	pds, err := Open(url)
	require.NoError(t, err)
	return pds
}

func TestCreateAccountThenLogin(t *testing.T) {
	ctx := context.Background()
	pds := openTestPds(t)

	result, err := pds.CreateAccount(ctx, "alice.example.com", "hunter2", "", "")
	require.NoError(t, err)
	require.False(t, result.Did.IsZero())

	sess, err := pds.Login(ctx, pdsclient.Credentials{Identifier: "alice.example.com", Secret: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, result.Did.String(), sess.Did().String())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	pds := openTestPds(t)

	_, err := pds.CreateAccount(ctx, "alice.example.com", "hunter2", "", "")
	require.NoError(t, err)

	_, err = pds.Login(ctx, pdsclient.Credentials{Identifier: "alice.example.com", Secret: "wrong"})
	require.Error(t, err)
}

func TestCrossRepoWriteIsDenied(t *testing.T) {
	ctx := context.Background()
	pds := openTestPds(t)

	_, err := pds.CreateAccount(ctx, "alice.example.com", "hunter2", "", "")
	require.NoError(t, err)
	bob, err := pds.CreateAccount(ctx, "bob.example.com", "swordfish", "", "")
	require.NoError(t, err)

	aliceSession, err := pds.Login(ctx, pdsclient.Credentials{Identifier: "alice.example.com", Secret: "hunter2"})
	require.NoError(t, err)

	// Restore a session claiming to be alice but carrying bob's token: the
	// file backend must reject the write once the token is re-verified
	// against the account store, never trusting the caller-supplied DID.
	forged, err := pds.Restore(ctx, aliceSession.Did(), pdsclient.TokenPair{
		Access:  bob.AccessToken,
		Refresh: bob.RefreshToken,
	})
	require.NoError(t, err)

	collection, err := pdsclient.ParseNsid("app.bsky.feed.post")
	require.NoError(t, err)
	rv, err := pdsclient.WithType("app.bsky.feed.post", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)

	_, err = forged.CreateRecord(ctx, collection, pdsclient.Rkey{}, rv)
	require.Error(t, err)
}

func TestDeleteAccountPurgesRecordsWhenRequested(t *testing.T) {
	ctx := context.Background()
	pds := openTestPds(t)

	result, err := pds.CreateAccount(ctx, "alice.example.com", "hunter2", "", "")
	require.NoError(t, err)

	sess, err := pds.Login(ctx, pdsclient.Credentials{Identifier: "alice.example.com", Secret: "hunter2"})
	require.NoError(t, err)

	collection, err := pdsclient.ParseNsid("app.bsky.feed.post")
	require.NoError(t, err)
	rv, err := pdsclient.WithType("app.bsky.feed.post", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	_, err = sess.CreateRecord(ctx, collection, pdsclient.Rkey{}, rv)
	require.NoError(t, err)

	require.NoError(t, pds.DeleteAccount(ctx, result.Did, "hunter2", true))

	_, err = pds.Login(ctx, pdsclient.Credentials{Identifier: "alice.example.com", Secret: "hunter2"})
	require.Error(t, err)

	out, err := pds.store.listRecords(result.Did.String(), collection, 10, "")
	require.NoError(t, err)
	require.Empty(t, out.Records)
}
