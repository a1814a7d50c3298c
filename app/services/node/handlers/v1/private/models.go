package private

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/state"
)

// snapshot carries the state of a node at its latest block. The chunks and
// the registry are snappy compressed.
type snapshot struct {
	Block    database.BlockData `json:"block"`
	Wallets  hexutil.Bytes      `json:"wallets_checksum"`
	Names    hexutil.Bytes      `json:"names_checksum"`
	Chunks   []hexutil.Bytes    `json:"chunks" validate:"required,min=1"`
	Registry hexutil.Bytes      `json:"registry" validate:"required"`
	Nonces   map[string]uint64  `json:"nonces"`
}

func toSnapshot(snap state.Snapshot) (snapshot, error) {
	out := snapshot{
		Block:    database.NewBlockData(snap.Block),
		Wallets:  snap.Wallets,
		Names:    snap.Names,
		Chunks:   make([]hexutil.Bytes, len(snap.Chunks)),
		Registry: snap.Registry,
		Nonces:   snap.Nonces,
	}

	for i, chunk := range snap.Chunks {
		data, err := chunk.MarshalBinary()
		if err != nil {
			return snapshot{}, err
		}
		out.Chunks[i] = data
	}

	return out, nil
}

func toStateSnapshot(in snapshot) (state.Snapshot, error) {
	block, err := database.ToBlock(in.Block)
	if err != nil {
		return state.Snapshot{}, err
	}

	snap := state.Snapshot{
		Block:    block,
		Wallets:  in.Wallets,
		Names:    in.Names,
		Chunks:   make([]database.Chunk, len(in.Chunks)),
		Registry: in.Registry,
		Nonces:   in.Nonces,
	}

	for i, data := range in.Chunks {
		if err := snap.Chunks[i].UnmarshalBinary(data); err != nil {
			return state.Snapshot{}, err
		}
	}

	return snap, nil
}
