package journaldb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/journaldb"
)

func TestWriteRead(t *testing.T) {
	s, err := journaldb.NewMem()
	require.NoError(t, err)
	defer s.Close()

	rec := journaldb.Record{
		Number:  7,
		Header:  []byte(`{"number":7}`),
		Wallets: []byte{1, 2, 3},
		Names:   []byte{4, 5},
	}
	require.NoError(t, s.Write(rec))

	got, err := s.Read(7)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = s.Read(8)
	assert.ErrorIs(t, err, journaldb.ErrNotFound)

	require.NoError(t, s.Delete(7))
	_, err = s.Get(journaldb.Wallets, 7)
	assert.ErrorIs(t, err, journaldb.ErrNotFound)
}

func TestForEachOrder(t *testing.T) {
	s, err := journaldb.NewMem()
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Latest()
	require.NoError(t, err)
	assert.False(t, found)

	for _, num := range []uint64{300, 2, 256, 1} {
		require.NoError(t, s.Write(journaldb.Record{Number: num, Header: []byte{byte(num)}, Wallets: []byte{byte(num)}}))
	}

	var nums []uint64
	err = s.ForEach(journaldb.Wallets, func(num uint64, data []byte) error {
		nums = append(nums, num)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 256, 300}, nums)

	latest, found, err := s.Latest()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(300), latest)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	s, err := journaldb.New(path, journaldb.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Put(journaldb.Names, 1, []byte("names")))
	require.NoError(t, s.Close())

	s, err = journaldb.New(path, journaldb.Options{})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Get(journaldb.Names, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("names"), data)
}

func TestLatestSnapshot(t *testing.T) {
	s, err := journaldb.NewMem()
	require.NoError(t, err)
	defer s.Close()

	_, _, found, err := s.LatestSnapshot()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(journaldb.Snapshot, 5, []byte("five")))
	require.NoError(t, s.Put(journaldb.Snapshot, 12, []byte("twelve")))
	require.NoError(t, s.Write(journaldb.Record{Number: 13, Header: []byte{13}}))

	num, data, found, err := s.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(12), num)
	assert.Equal(t, []byte("twelve"), data)

	// Snapshots don't show up as blocks.
	latest, _, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(13), latest)
}
