package state

import (
	"context"
	"errors"
	"slices"

	"github.com/ixledger/node/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	// Pick the best transactions from the mempool.
	trans := s.mempool.PickBest(s.transPerBlock)

	s.evHandler("state: MineNewBlock: MINING: dry run transactions[%d]", len(trans))

	prevBlock, hdr, trans, wallets, names, err := s.dryRun(trans)
	if err != nil {
		return database.Block{}, err
	}

	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID:  hdr.BeneficiaryID,
		Difficulty:     hdr.Difficulty,
		Version:        hdr.Version,
		PrevBlock:      prevBlock,
		Trans:          trans,
		WalletChecksum: wallets,
		NamesChecksum:  names,
		EvHandler:      s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.ProcessBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// dryRun applies the transactions on top of the latest block to learn the
// checksums the new block must carry, then reverts them. Transactions that
// can't be applied are dropped from the block and the mempool.
func (s *State) dryRun(trans []database.SignedTx) (database.Block, database.BlockHeader, []database.SignedTx, []byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevBlock := s.latestBlock
	hdr := database.BlockHeader{
		Number:        prevBlock.Header.Number + 1,
		Version:       max(s.blockVersion, prevBlock.Header.Version),
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    max(s.genesis.Difficulty, prevBlock.Header.Difficulty),
	}

	for {
		err := s.execute(hdr, trans)
		if err == nil {
			break
		}

		te, ok := errIsTx(err)
		if !ok {
			return database.Block{}, database.BlockHeader{}, nil, nil, nil, err
		}

		s.evHandler("state: dryRun: blk[%d]: dropping tx[%s]: %s", hdr.Number, te.Tx, te.Err)
		s.mempool.Delete(te.Tx)
		trans = slices.Delete(slices.Clone(trans), te.Index, te.Index+1)
	}

	wallets, names, err := s.checksums(hdr.Number)
	s.revert(hdr.Number)

	if err != nil {
		return database.Block{}, database.BlockHeader{}, nil, nil, nil, err
	}

	return prevBlock, hdr, trans, wallets, names, nil
}
