package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
)

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.Header.PrevBlockHash, block.Hash(), len(block.Values()))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash())

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
			done()
		}()
	}

	return s.ProcessBlock(block)
}

// ProcessBlock validates the block against the latest block, applies it to
// the ledger and the registry, verifies the checksums it carries and
// persists it. Any failure leaves both journals as they were.
func (s *State) ProcessBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.processBlock(block); err != nil {
		blocksProcessed.WithLabelValues("failed").Inc()
		return err
	}

	blocksProcessed.WithLabelValues("ok").Inc()
	return nil
}

func (s *State) processBlock(block database.Block) error {
	num := block.Header.Number

	s.evHandler("state: processBlock: blk[%d]: validate block", num)

	if err := block.ValidateBlock(s.latestBlock, s.evHandler); err != nil {
		return err
	}

	if block.Header.Difficulty < s.genesis.Difficulty {
		return fmt.Errorf("block difficulty %d is less than the chain difficulty %d", block.Header.Difficulty, s.genesis.Difficulty)
	}

	if block.Header.Version > database.CurrentBlockVersion {
		return fmt.Errorf("block version %d is not supported, max %d", block.Header.Version, database.CurrentBlockVersion)
	}

	s.evHandler("state: processBlock: blk[%d]: apply transactions", num)

	if err := s.execute(block.Header, block.Values()); err != nil {
		return err
	}

	s.evHandler("state: processBlock: blk[%d]: verify checksums", num)

	wallets, names, err := s.checksums(num)
	if err != nil {
		s.revert(num)
		return err
	}

	if !block.Header.ChecksumsEqual(wallets, names) {
		s.evHandler("state: processBlock: blk[%d]: ERROR: wallets got[%x] exp[%x]: names got[%x] exp[%x]", num, wallets, block.Header.WalletChecksum, names, block.Header.NamesChecksum)
		s.revert(num)
		return fmt.Errorf("blk[%d]: %w", num, ErrChecksumMismatch)
	}

	s.evHandler("state: processBlock: blk[%d]: write to journal store", num)

	if err := s.persist(block); err != nil {
		s.revert(num)
		return err
	}

	s.latestBlock = block
	blockHeight.WithLabelValues().Set(float64(num))

	s.evHandler("state: processBlock: blk[%d]: remove transactions from mempool", num)

	for _, tx := range block.Values() {
		s.used[usedKey(tx)] = num
		s.mempool.Delete(tx)
	}
	mempoolSize.WithLabelValues().Set(float64(s.mempool.Count()))

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// =============================================================================

// execute opens the transactions of both journals for the block, applies
// its transactions, the mining reward and the expiration of names, and
// commits. On failure nothing is left open or committed. A transaction
// that can't be applied is reported as a *TxError.
func (s *State) execute(hdr database.BlockHeader, trans []database.SignedTx) error {
	num := hdr.Number

	s.setBlockVersion(hdr.Version)

	if !s.db.BeginTransaction(num) {
		s.setBlockVersion(s.latestBlock.Header.Version)
		return fmt.Errorf("blk[%d]: unable to open ledger transaction", num)
	}

	if !s.names.BeginTransaction(num) {
		s.revert(num)
		return fmt.Errorf("blk[%d]: unable to open registry transaction", num)
	}

	inBlock := make(map[string]bool, len(trans))
	for i, tx := range trans {
		key := usedKey(tx)
		if inBlock[key] {
			s.revert(num)
			return &TxError{Index: i, Tx: tx, Err: ErrNonceUsed}
		}
		inBlock[key] = true

		if err := s.applyTx(num, hdr.BeneficiaryID, tx); err != nil {
			s.evHandler("state: execute: blk[%d]: tx[%s]: ERROR: %s", num, tx, err)
			s.revert(num)
			return &TxError{Index: i, Tx: tx, Err: err}
		}
	}

	if !s.miningReward.IsZero() && !s.db.AddBalance(hdr.BeneficiaryID, s.miningReward) {
		s.revert(num)
		return fmt.Errorf("blk[%d]: unable to apply mining reward", num)
	}

	if n := s.names.RemoveExpired(num); n > 0 {
		s.evHandler("state: execute: blk[%d]: expired names[%d]", num, n)
	}

	if !s.db.CommitTransaction(num) {
		s.revert(num)
		return fmt.Errorf("blk[%d]: unable to commit ledger transaction", num)
	}

	if !s.names.CommitTransaction(num) {
		s.revert(num)
		return fmt.Errorf("blk[%d]: unable to commit registry transaction", num)
	}

	return nil
}

// revert undoes the open or committed transactions of both journals for
// the block and moves them back to the version of the latest block.
func (s *State) revert(num uint64) {
	if s.names.InTransaction() || isNewest(s.names.HistoryNumbers(), num) {
		if !s.names.RevertTransaction(num) {
			s.evHandler("state: revert: blk[%d]: ERROR: registry can't be reverted", num)
		}
	}

	if s.db.InTransaction() || isNewest(s.db.HistoryNumbers(), num) {
		if !s.db.RevertTransaction(num) {
			s.evHandler("state: revert: blk[%d]: ERROR: ledger can't be reverted", num)
		}
	}

	s.setBlockVersion(s.latestBlock.Header.Version)
}

// isNewest reports whether num is the most recently committed number.
func isNewest(numbers []uint64, num uint64) bool {
	return len(numbers) > 0 && numbers[len(numbers)-1] == num
}

// checksums returns the checksums a block carries. Superblocks carry the
// checksums of the whole ledger and registry, every other block carries
// the checksums of what it changed.
func (s *State) checksums(num uint64) ([]byte, []byte, error) {
	if num%s.genesis.SuperblockInterval == 0 {
		return s.db.Checksum(), s.names.Checksum(), nil
	}

	wallets, ok := s.db.DeltaChecksum(num)
	if !ok {
		return nil, nil, fmt.Errorf("blk[%d]: %w", num, ErrHistoryExhausted)
	}

	names, ok := s.names.DeltaChecksum(num)
	if !ok {
		return nil, nil, fmt.Errorf("blk[%d]: %w", num, ErrHistoryExhausted)
	}

	return wallets, names, nil
}

// persist writes the block and the committed journal transactions to the
// store in one batch.
func (s *State) persist(block database.Block) error {
	num := block.Header.Number

	header, err := json.Marshal(database.NewBlockData(block))
	if err != nil {
		return err
	}

	wallets, ok := s.db.Transaction(num)
	if !ok {
		return fmt.Errorf("blk[%d]: ledger transaction missing", num)
	}

	names, ok := s.names.Transaction(num)
	if !ok {
		return fmt.Errorf("blk[%d]: registry transaction missing", num)
	}

	return s.store.Write(journaldb.Record{
		Number:  num,
		Header:  header,
		Wallets: wallets,
		Names:   names,
	})
}

// loadBlock reads a persisted block. The block the chain was loaded from,
// genesis or a snapshot, is kept in memory.
func (s *State) loadBlock(num uint64) (database.Block, error) {
	if num == s.base.Header.Number {
		return s.base, nil
	}

	data, err := s.store.Get(journaldb.Header, num)
	if err != nil {
		return database.Block{}, err
	}

	return decodeBlock(num, data)
}

// genesisVersion returns the protocol version the chain started at.
func (s *State) genesisVersion() uint32 {
	if s.genesis.BlockVersion == 0 {
		return database.CurrentBlockVersion
	}

	return s.genesis.BlockVersion
}

// decodeBlock rebuilds a persisted block.
func decodeBlock(num uint64, data []byte) (database.Block, error) {
	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.Block{}, fmt.Errorf("blk[%d]: decode header: %w", num, err)
	}

	if blockData.Header.Number != num {
		return database.Block{}, fmt.Errorf("blk[%d]: header holds blk[%d]", num, blockData.Header.Number)
	}

	return database.ToBlock(blockData)
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Values())
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"trans":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}

// errIsTx reports whether the error was caused by one transaction and
// returns it.
func errIsTx(err error) (*TxError, bool) {
	var te *TxError
	if errors.As(err, &te) {
		return te, true
	}

	return nil, false
}
