package processor

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritasnet/atlas/pkg/events"
	"github.com/veritasnet/atlas/pkg/params"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/storage"
	"github.com/veritasnet/atlas/pkg/types"
)

type fixture struct {
	proc      *Processor
	stores    Stores
	authority *security.Authority
	broker    *events.Broker
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	db, err := storage.OpenBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stores := Stores{
		NetworkParameters: db.Blobs(storage.CollectionNetworkParameters),
		NetworkMap:        db.Blobs(storage.CollectionNetworkMap),
		NodeInfos:         db.Blobs(storage.CollectionNodeInfo),
		ParametersUpdates: db.Texts(storage.CollectionParametersUpdate),
		Texts:             db.Texts(storage.CollectionText),
	}

	authority := security.NewAuthority()
	require.NoError(t, authority.Generate("Test Network Map Root"))

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	proc, err := New(cfg, stores, authority, broker)
	require.NoError(t, err)
	require.NoError(t, proc.Start())
	t.Cleanup(proc.Stop)

	return &fixture{proc: proc, stores: stores, authority: authority, broker: broker}
}

// latestMap reads the stored signed map, checks the signature and decodes it.
func (f *fixture) latestMap(t *testing.T) types.NetworkMap {
	t.Helper()
	nm, ok := f.tryLatestMap()
	require.True(t, ok, "no valid signed network map stored")
	return nm
}

// tryLatestMap is the non-failing variant for polling loops.
func (f *fixture) tryLatestMap() (types.NetworkMap, bool) {
	data, err := f.stores.NetworkMap.Get(storage.KeyLatestNetworkMap)
	if err != nil {
		return types.NetworkMap{}, false
	}
	signed, err := types.DecodeSignedBlob(data)
	if err != nil {
		return types.NetworkMap{}, false
	}
	payload, err := f.authority.Verify(signed)
	if err != nil {
		return types.NetworkMap{}, false
	}
	var nm types.NetworkMap
	if err := json.Unmarshal(payload, &nm); err != nil {
		return types.NetworkMap{}, false
	}
	return nm, true
}

func signedNode(t *testing.T, name string, key *ecdsa.PrivateKey) *types.SignedNodeInfo {
	t.Helper()
	if key == nil {
		var err error
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
	}
	pub, err := security.MarshalPublicKey(&key.PublicKey)
	require.NoError(t, err)

	ni := &types.NodeInfo{
		LegalIdentities: []types.Identity{{Name: name, PublicKey: pub}},
		Addresses:       []string{"node.example.com:10002"},
		PlatformVersion: 4,
	}
	signed, err := security.SignNodeInfo(ni, []*ecdsa.PrivateKey{key})
	require.NoError(t, err)
	return signed
}

func TestColdStart(t *testing.T) {
	f := newFixture(t, Config{})

	current, hash, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, 1, current.Epoch)
	assert.Empty(t, current.Notaries)

	nm := f.latestMap(t)
	assert.Empty(t, nm.NodeInfoHashes)
	assert.Equal(t, hash, nm.NetworkParameterHash)
	assert.Nil(t, nm.ParametersUpdate)

	pending, err := f.proc.PendingUpdate()
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestRestartKeepsParameters(t *testing.T) {
	db, err := storage.OpenBolt(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	stores := Stores{
		NetworkParameters: db.Blobs(storage.CollectionNetworkParameters),
		NetworkMap:        db.Blobs(storage.CollectionNetworkMap),
		NodeInfos:         db.Blobs(storage.CollectionNodeInfo),
		ParametersUpdates: db.Texts(storage.CollectionParametersUpdate),
		Texts:             db.Texts(storage.CollectionText),
	}
	authority := security.NewAuthority()
	require.NoError(t, authority.Generate("Test Network Map Root"))
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	proc, err := New(Config{}, stores, authority, broker)
	require.NoError(t, err)
	require.NoError(t, proc.Start())
	_, firstHash, err := proc.CurrentParameters()
	require.NoError(t, err)
	proc.Stop()

	// Second boot over the same stores must not mint new parameters.
	proc, err = New(Config{}, stores, authority, broker)
	require.NoError(t, err)
	require.NoError(t, proc.Start())
	defer proc.Stop()

	current, hash, err := proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, firstHash, hash)
	assert.Equal(t, 1, current.Epoch)
}

func TestAddNodeAppearsInMap(t *testing.T) {
	f := newFixture(t, Config{})

	signed := signedNode(t, "O=Alpha,L=London,C=GB", nil)
	require.NoError(t, f.proc.AddNode(signed).Wait(context.Background()))

	nm := f.latestMap(t)
	require.Len(t, nm.NodeInfoHashes, 1)
	assert.Equal(t, signed.Hash(), nm.NodeInfoHashes[0])

	// The stored payload is byte-identical to what was published.
	data, err := f.stores.NodeInfos.Get(string(signed.Hash()))
	require.NoError(t, err)
	stored, err := types.DecodeSignedNodeInfo(data)
	require.NoError(t, err)
	assert.Equal(t, signed.Raw, stored.Raw)

	// Republishing the identical payload is fine.
	require.NoError(t, f.proc.AddNode(signed).Wait(context.Background()))
	assert.Len(t, f.latestMap(t).NodeInfoHashes, 1)
}

func TestAddNodeRejectsBadSignature(t *testing.T) {
	f := newFixture(t, Config{})

	signed := signedNode(t, "O=Alpha,C=GB", nil)
	signed.Signatures[0] = []byte("garbage")

	err := f.proc.AddNode(signed).Wait(context.Background())
	assert.ErrorIs(t, err, security.ErrBadSignature)
	assert.Empty(t, f.latestMap(t).NodeInfoHashes)
}

func TestAddNodeNameConflict(t *testing.T) {
	f := newFixture(t, Config{})

	first := signedNode(t, "O=Alpha,L=London,C=GB", nil)
	require.NoError(t, f.proc.AddNode(first).Wait(context.Background()))

	// Same name, different key.
	conflicting := signedNode(t, "O=Alpha,L=London,C=GB", nil)
	err := f.proc.AddNode(conflicting).Wait(context.Background())
	assert.ErrorIs(t, err, ErrNameConflict)

	// The rejected publish left no trace.
	keys, err := f.stores.NodeInfos.GetKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{string(first.Hash())}, keys)
}

func TestAddNodeSameKeyNewAddress(t *testing.T) {
	f := newFixture(t, Config{})

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	first := signedNode(t, "O=Alpha,L=London,C=GB", key)
	require.NoError(t, f.proc.AddNode(first).Wait(context.Background()))

	// The same identity key republishing under the same name is an update,
	// not a conflict. Both payloads stay addressable.
	pub, err := security.MarshalPublicKey(&key.PublicKey)
	require.NoError(t, err)
	ni := &types.NodeInfo{
		LegalIdentities: []types.Identity{{Name: "O=Alpha,L=London,C=GB", PublicKey: pub}},
		Addresses:       []string{"moved.example.com:10002"},
		PlatformVersion: 4,
	}
	second, err := security.SignNodeInfo(ni, []*ecdsa.PrivateKey{key})
	require.NoError(t, err)
	require.NoError(t, f.proc.AddNode(second).Wait(context.Background()))

	nm := f.latestMap(t)
	assert.Len(t, nm.NodeInfoHashes, 2)
}

func TestDeleteNode(t *testing.T) {
	f := newFixture(t, Config{})

	signed := signedNode(t, "O=Alpha,C=GB", nil)
	require.NoError(t, f.proc.AddNode(signed).Wait(context.Background()))
	require.Len(t, f.latestMap(t).NodeInfoHashes, 1)

	require.NoError(t, f.proc.DeleteNode(signed.Hash()).Wait(context.Background()))
	assert.Empty(t, f.latestMap(t).NodeInfoHashes)
}

func TestUpdateParametersImmediate(t *testing.T) {
	f := newFixture(t, Config{})

	h := types.HashBytes([]byte("impl"))
	change := params.AppendWhitelist{Entries: map[string][]types.Hash{"com.example.Token": {h}}}
	require.NoError(t, f.proc.UpdateParameters(params.ApplyChange(change), "whitelist token").
		Wait(context.Background()))

	// Zero delay means the update activates in place.
	current, hash, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Epoch)
	assert.Equal(t, []types.Hash{h}, current.Whitelist["com.example.Token"])

	pending, err := f.proc.PendingUpdate()
	require.NoError(t, err)
	assert.Nil(t, pending)

	nm := f.latestMap(t)
	assert.Equal(t, hash, nm.NetworkParameterHash)
	assert.Nil(t, nm.ParametersUpdate)
}

func TestUpdateParametersScheduled(t *testing.T) {
	f := newFixture(t, Config{})

	_, oldHash, err := f.proc.CurrentParameters()
	require.NoError(t, err)

	deadline := time.Now().Add(150 * time.Millisecond)
	change := params.AddNotary{Notary: types.NotaryInfo{
		Identity:   types.Identity{Name: "O=Notary,C=GB", PublicKey: []byte("notary-key")},
		Validating: true,
	}}
	require.NoError(t, f.proc.UpdateParametersAt(params.ApplyChange(change), "add notary", deadline).
		Wait(context.Background()))

	// Until the deadline the old parameters stay active and the map
	// advertises the pending update.
	current, hash, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, 1, current.Epoch)
	assert.Equal(t, oldHash, hash)

	pending, err := f.proc.PendingUpdate()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "add notary", pending.Description)

	nm := f.latestMap(t)
	require.NotNil(t, nm.ParametersUpdate)
	assert.Equal(t, pending.NewParametersHash, nm.ParametersUpdate.NewParametersHash)

	// After the deadline the update activates on its own.
	require.Eventually(t, func() bool {
		current, _, err := f.proc.CurrentParameters()
		return err == nil && current.Epoch == 2
	}, 2*time.Second, 10*time.Millisecond)

	pending, err = f.proc.PendingUpdate()
	require.NoError(t, err)
	assert.Nil(t, pending)

	require.Eventually(t, func() bool {
		nm, ok := f.tryLatestMap()
		return ok && nm.ParametersUpdate == nil && nm.NetworkParameterHash != oldHash
	}, 2*time.Second, 10*time.Millisecond)

	current, _, err = f.proc.CurrentParameters()
	require.NoError(t, err)
	require.Len(t, current.Notaries, 1)
	assert.Equal(t, "O=Notary,C=GB", current.Notaries[0].Identity.Name)
}

// TestReplacedPendingUpdate schedules two updates; the second replaces the
// first and its parameters win at activation.
func TestReplacedPendingUpdate(t *testing.T) {
	f := newFixture(t, Config{})

	deadline := time.Now().Add(150 * time.Millisecond)
	first := params.AppendWhitelist{Entries: map[string][]types.Hash{
		"com.example.A": {types.HashBytes([]byte("a"))},
	}}
	require.NoError(t, f.proc.UpdateParametersAt(params.ApplyChange(first), "first", deadline).
		Wait(context.Background()))

	second := params.AppendWhitelist{Entries: map[string][]types.Hash{
		"com.example.B": {types.HashBytes([]byte("b"))},
	}}
	require.NoError(t, f.proc.UpdateParametersAt(params.ApplyChange(second), "second", deadline).
		Wait(context.Background()))

	require.Eventually(t, func() bool {
		pending, err := f.proc.PendingUpdate()
		return err == nil && pending == nil
	}, 2*time.Second, 10*time.Millisecond)

	current, _, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Contains(t, current.Whitelist, "com.example.B")
	assert.NotContains(t, current.Whitelist, "com.example.A")
}

// TestImmediateUpdateSupersedesScheduled applies an immediate update while an
// earlier one is still pending; the scheduled update must be dropped, not
// left to fire later against an older epoch base.
func TestImmediateUpdateSupersedesScheduled(t *testing.T) {
	f := newFixture(t, Config{})

	deadline := time.Now().Add(150 * time.Millisecond)
	scheduled := params.AppendWhitelist{Entries: map[string][]types.Hash{
		"com.example.Old": {types.HashBytes([]byte("old"))},
	}}
	require.NoError(t, f.proc.UpdateParametersAt(params.ApplyChange(scheduled), "scheduled", deadline).
		Wait(context.Background()))

	immediate := params.AppendWhitelist{Entries: map[string][]types.Hash{
		"com.example.New": {types.HashBytes([]byte("new"))},
	}}
	require.NoError(t, f.proc.UpdateParameters(params.ApplyChange(immediate), "immediate").
		Wait(context.Background()))

	current, hash, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Epoch)
	assert.Contains(t, current.Whitelist, "com.example.New")

	pending, err := f.proc.PendingUpdate()
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Nil(t, f.latestMap(t).ParametersUpdate)

	// Past the original deadline nothing activates: the pointer stays where
	// the immediate update put it and the epoch never moves backwards.
	time.Sleep(250 * time.Millisecond)
	current, after, err := f.proc.CurrentParameters()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Epoch)
	assert.Equal(t, hash, after)
	assert.NotContains(t, current.Whitelist, "com.example.Old")
}

// TestRebuildDebounce publishes a burst of nodes and expects them to coalesce
// into far fewer map rebuilds than publishes.
func TestRebuildDebounce(t *testing.T) {
	f := newFixture(t, Config{NetworkMapDelay: 50 * time.Millisecond})

	sub := f.broker.Subscribe()
	defer f.broker.Unsubscribe(sub)

	const burst = 5
	for i := 0; i < burst; i++ {
		signed := signedNode(t, fmt.Sprintf("O=Node%d,C=GB", i), nil)
		require.NoError(t, f.proc.AddNode(signed).Wait(context.Background()))
	}

	require.Eventually(t, func() bool {
		nm, ok := f.tryLatestMap()
		return ok && len(nm.NodeInfoHashes) == burst
	}, 2*time.Second, 10*time.Millisecond)

	rebuilds := 0
	drained := false
	for !drained {
		select {
		case event := <-sub:
			if event.Type == events.EventMapRebuilt {
				rebuilds++
			}
		case <-time.After(200 * time.Millisecond):
			drained = true
		}
	}
	assert.GreaterOrEqual(t, rebuilds, 1)
	assert.Less(t, rebuilds, burst, "burst publishes must coalesce")
}

func TestStopFailsPendingWork(t *testing.T) {
	f := newFixture(t, Config{})
	f.proc.Stop()

	err := f.proc.AddNode(signedNode(t, "O=Late,C=GB", nil)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
