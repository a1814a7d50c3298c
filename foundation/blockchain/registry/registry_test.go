package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/registry"
)

var (
	alice = database.AccountID{1}
	bob   = database.AccountID{2}
)

func newRegistry(t *testing.T, version uint32) *registry.Registry {
	t.Helper()

	return registry.New(registry.Config{
		BlockVersion: version,
		EvHandler:    func(v string, args ...any) { t.Logf(v, args...) },
	})
}

func TestValidateName(t *testing.T) {
	valid := []string{"ix", "pay.ix", "a-b.c0.ix", "0"}
	for _, name := range valid {
		assert.NoError(t, registry.ValidateName(name), name)
	}

	invalid := []string{"", "Ix", "-ix", "ix-", "a..ix", ".ix", "ix.", "a_b", "ünï"}
	for _, name := range invalid {
		assert.ErrorIs(t, registry.ValidateName(name), registry.ErrInvalidName, name)
	}

	parent, found := registry.Parent("pay.ix")
	assert.True(t, found)
	assert.Equal(t, "ix", parent)

	_, found = registry.Parent("ix")
	assert.False(t, found)
}

func TestRegister(t *testing.T) {
	r := newRegistry(t, database.CurrentBlockVersion)

	require.False(t, r.Register("pay.ix", alice, bob, 16, 0), "subname without parent")
	require.True(t, r.Register("ix", alice, bob, 16, 0))
	require.False(t, r.Register("ix", bob, bob, 16, 0), "name registered twice")
	require.True(t, r.Register("pay.ix", bob, alice, 8, 100))
	require.False(t, r.Register("big", alice, bob, registry.MaxCapacity+1, 0), "capacity over the limit")

	n, exists := r.Lookup("pay.ix")
	require.True(t, exists)
	assert.Equal(t, registry.ToNameID("pay.ix"), n.ID)
	assert.Equal(t, bob, n.Owner)
	assert.Equal(t, alice, n.Recovery)
	assert.Equal(t, uint32(8), n.Capacity)
	assert.Equal(t, uint64(100), n.Expiration)
	assert.Equal(t, 2, r.Count())

	assert.False(t, r.Remove("ix"), "parent with subnames")
	assert.True(t, r.Remove("pay.ix"))
	assert.True(t, r.Remove("ix"))
	assert.Zero(t, r.Count())
}

func TestUpdates(t *testing.T) {
	r := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, r.Register("ix", alice, bob, 4, 50))

	assert.True(t, r.UpdateData("ix", []byte{1, 2, 3, 4}))
	assert.False(t, r.UpdateData("ix", []byte{1, 2, 3, 4, 5}), "data over capacity")
	assert.False(t, r.UpdateCapacity("ix", 3), "capacity below the data")
	assert.True(t, r.UpdateCapacity("ix", 32))
	assert.True(t, r.UpdateData("ix", []byte{1, 2, 3, 4, 5}))

	assert.True(t, r.TransferOwner("ix", bob))
	assert.True(t, r.ChangeRecovery("ix", alice))
	assert.False(t, r.ExtendExpiration("ix", 40), "expiration moving back")
	assert.True(t, r.ExtendExpiration("ix", 60))

	assert.False(t, r.UpdateData("missing", nil))
	assert.False(t, r.TransferOwner("missing", bob))

	n, _ := r.Lookup("ix")
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, []byte(n.Data))
	assert.Equal(t, bob, n.Owner)
	assert.Equal(t, alice, n.Recovery)
	assert.Equal(t, uint32(32), n.Capacity)
	assert.Equal(t, uint64(60), n.Expiration)

	n.Data[0] = 99
	again, _ := r.Lookup("ix")
	assert.Equal(t, byte(1), again.Data[0], "lookups must return copies")
}

func TestTransactionRevert(t *testing.T) {
	r := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, r.Register("ix", alice, bob, 16, 0))
	before := r.Checksum()

	require.True(t, r.BeginTransaction(1))
	require.True(t, r.Register("pay.ix", bob, alice, 8, 0))
	require.True(t, r.UpdateData("ix", []byte("hello")))
	require.True(t, r.TransferOwner("ix", bob))
	require.True(t, r.CommitTransaction(1))

	assert.NotEqual(t, before, r.Checksum())
	assert.Equal(t, []uint64{1}, r.HistoryNumbers())

	require.True(t, r.RevertTransaction(1))
	assert.Equal(t, before, r.Checksum())
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.RevertTransaction(1), "already reverted")
}

func TestReplayTransaction(t *testing.T) {
	src := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, src.BeginTransaction(1))
	require.True(t, src.Register("ix", alice, bob, 16, 10))
	require.True(t, src.Register("pay.ix", bob, alice, 8, 10))
	require.True(t, src.UpdateData("pay.ix", []byte{7}))
	require.True(t, src.CommitTransaction(1))

	data, exists := src.Transaction(1)
	require.True(t, exists)

	dst := newRegistry(t, database.CurrentBlockVersion)
	tx, err := dst.DecodeTransaction(data)
	require.NoError(t, err)
	require.NoError(t, dst.ReplayTransaction(tx))

	assert.Equal(t, src.Checksum(), dst.Checksum())
	assert.Equal(t, src.Names(), dst.Names())

	srcDelta, ok := src.DeltaChecksum(1)
	require.True(t, ok)
	dstDelta, ok := dst.DeltaChecksum(1)
	require.True(t, ok)
	assert.Equal(t, srcDelta, dstDelta)

	// Replaying the same transaction again fails on the first create and
	// leaves the registry untouched.
	again, err := dst.DecodeTransaction(data)
	require.NoError(t, err)
	assert.Error(t, dst.ReplayTransaction(again))
	assert.Equal(t, src.Checksum(), dst.Checksum())

	_, err = dst.DecodeTransaction(data[:len(data)-1])
	assert.Error(t, err)
}

func TestRemoveExpired(t *testing.T) {
	r := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, r.Register("ix", alice, bob, 0, 10))
	require.True(t, r.Register("pay.ix", alice, bob, 0, 10))
	require.True(t, r.Register("a.pay.ix", alice, bob, 0, 20))
	require.True(t, r.Register("forever", alice, bob, 0, 0))

	require.True(t, r.BeginTransaction(10))
	assert.Equal(t, 0, r.RemoveExpired(10), "parents with live subnames are kept")
	require.True(t, r.CommitTransaction(10))

	require.True(t, r.BeginTransaction(20))
	assert.Equal(t, 3, r.RemoveExpired(20))
	require.True(t, r.CommitTransaction(20))

	names := r.Names()
	require.Len(t, names, 1)
	assert.Equal(t, "forever", names[0].Name)

	require.True(t, r.RevertTransaction(20))
	assert.Equal(t, 4, r.Count())
}

func TestChecksumVersions(t *testing.T) {
	n := registry.Name{
		ID:       registry.ToNameID("ix"),
		Name:     "ix",
		Owner:    alice,
		Recovery: bob,
		Capacity: 4,
		Data:     []byte{1},
	}

	legacy := registry.NameChecksum(n, database.ChecksumV2Version-1)
	current := registry.NameChecksum(n, database.ChecksumV2Version)
	assert.NotEqual(t, legacy, current)
	assert.Equal(t, current, registry.NameChecksum(n.Clone(), database.ChecksumV2Version))

	r := newRegistry(t, database.CurrentBlockVersion)
	empty := r.Checksum()
	r.SetBlockVersion(database.CurrentBlockVersion - 1)
	assert.NotEqual(t, empty, r.Checksum(), "version seeds the checksum")
}

func TestDeltaChecksumOrder(t *testing.T) {
	build := func(version uint32, names ...string) []byte {
		r := newRegistry(t, version)
		require.True(t, r.BeginTransaction(1))
		for _, name := range names {
			require.True(t, r.Register(name, alice, bob, 0, 0))
		}
		sum, ok := r.DeltaChecksum(1)
		require.True(t, ok)
		return sum
	}

	sorted := database.AffectedFirstTouchVersion - 1
	assert.Equal(t, build(uint32(sorted), "a", "b", "c"), build(uint32(sorted), "c", "b", "a"))

	touch := uint32(database.AffectedFirstTouchVersion)
	assert.NotEqual(t, build(touch, "a", "b", "c"), build(touch, "c", "b", "a"))

	r := newRegistry(t, database.CurrentBlockVersion)
	_, ok := r.DeltaChecksum(9)
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	src := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, src.Register("ix", alice, bob, 16, 0))
	require.True(t, src.Register("pay.ix", bob, alice, 8, 100))
	require.True(t, src.UpdateData("ix", []byte("data")))

	dst := newRegistry(t, database.CurrentBlockVersion)
	require.True(t, dst.Register("stale", bob, bob, 4, 0))

	require.NoError(t, dst.ApplySnapshot(src.Snapshot()))
	assert.Equal(t, src.Checksum(), dst.Checksum())
	assert.Equal(t, src.Names(), dst.Names())

	_, exists := dst.Lookup("stale")
	assert.False(t, exists, "names missing from the snapshot are dropped")

	assert.Error(t, dst.ApplySnapshot([]byte{0x01, 0x02}))

	// Once a block was committed the registry only changes through its journal.
	require.True(t, dst.BeginTransaction(1))
	require.True(t, dst.CommitTransaction(1))
	assert.ErrorIs(t, dst.ApplySnapshot(src.Snapshot()), registry.ErrSnapshotAfterSync)
}
