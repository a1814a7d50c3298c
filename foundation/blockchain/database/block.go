package database

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ixledger/node/foundation/blockchain/hasher"
	"github.com/ixledger/node/foundation/blockchain/merkle"
)

// ZeroHash represents a hash code of zeros. It is the hash of the genesis
// block and the root of a block without transactions.
var ZeroHash = hexutil.Encode(make([]byte, hasher.Size))

// ErrChainForked is returned from ValidateBlock if another node's chain
// is two or more blocks ahead of ours.
var ErrChainForked = errors.New("blockchain forked, start resync")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number         uint64        `json:"number"`          // Block number in the chain.
	Version        uint32        `json:"version"`         // Protocol version the block was produced with.
	PrevBlockHash  string        `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp      uint64        `json:"timestamp"`       // Time the block was mined.
	Nonce          uint64        `json:"nonce"`           // Value identified to solve the hash solution.
	BeneficiaryID  AccountID     `json:"beneficiary"`     // The account receiving the reward and fees.
	Difficulty     uint16        `json:"difficulty"`      // Number of 0's needed to solve the hash solution.
	TransRoot      string        `json:"trans_root"`      // Merkle root of the transactions in this block.
	WalletChecksum hexutil.Bytes `json:"wallet_checksum"` // Ledger checksum after the block, full on superblocks.
	NamesChecksum  hexutil.Bytes `json:"names_checksum"`  // Registry checksum after the block, full on superblocks.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[SignedTx]
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BeneficiaryID  AccountID
	Difficulty     uint16
	Version        uint32
	PrevBlock      Block
	Trans          []SignedTx
	WalletChecksum []byte
	NamesChecksum  []byte
	EvHandler      func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	tree, root, err := transTree(args.Trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header: BlockHeader{
			Number:         args.PrevBlock.Header.Number + 1,
			Version:        args.Version,
			PrevBlockHash:  args.PrevBlock.Hash(),
			TimeStamp:      uint64(time.Now().UTC().UnixMilli()),
			Nonce:          0, // Will be identified by the POW algorithm.
			BeneficiaryID:  args.BeneficiaryID,
			Difficulty:     args.Difficulty,
			TransRoot:      root,
			WalletChecksum: args.WalletChecksum,
			NamesChecksum:  args.NamesChecksum,
		},
		Trans: tree,
	}

	// The parent's time is the floor so a fast clock on the parent's miner
	// can't make our block invalid.
	if nb.Header.TimeStamp < args.PrevBlock.Header.TimeStamp {
		nb.Header.TimeStamp = args.PrevBlock.Header.TimeStamp
	}

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started")
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Values() {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found by us or another node.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return err
	}
	b.Header.Nonce = nBig.Uint64()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the unique hash for the Block. Only the header is hashed so
// the chain can be checked with headers alone.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return ZeroHash
	}

	data, err := json.Marshal(b.Header)
	if err != nil {
		return ZeroHash
	}

	return hexutil.Encode(hasher.Sum(data))
}

// IsSolved reports whether the hash of the block meets its difficulty.
func (b Block) IsSolved() bool {
	return isHashSolved(b.Header.Difficulty, b.Hash())
}

// Values returns the transactions in the block.
func (b Block) Values() []SignedTx {
	if b.Trans == nil {
		return nil
	}

	return b.Trans.Values()
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain. The checksums are verified by the caller once the block has
// been applied.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: chain is not forked", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number >= (nextNumber + 2) {
		return ErrChainForked
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block difficulty is the same or greater than parent block difficulty", b.Header.Number)

	if b.Header.Difficulty < previousBlock.Header.Difficulty {
		return fmt.Errorf("block difficulty is less than previous block difficulty, parent %d, block %d", previousBlock.Header.Difficulty, b.Header.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block version is the same or greater than parent block version", b.Header.Number)

	if b.Header.Version < previousBlock.Header.Version {
		return fmt.Errorf("block version is less than previous block version, parent %d, block %d", previousBlock.Header.Version, b.Header.Version)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	hash := b.Hash()
	if !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%s invalid block hash", hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, previousBlock.Hash())
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		parentTime := time.UnixMilli(int64(previousBlock.Header.TimeStamp))
		blockTime := time.UnixMilli(int64(b.Header.TimeStamp))
		return fmt.Errorf("block timestamp is before parent block, parent %s, block %s", parentTime, blockTime)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	_, root, err := transTree(b.Values())
	if err != nil {
		return err
	}

	if b.Header.TransRoot != root {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", root, b.Header.TransRoot)
	}

	return nil
}

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func isHashSolved(difficulty uint16, hash string) bool {
	hash = strings.TrimPrefix(hash, "0x")

	if len(hash) != 2*hasher.Size || int(difficulty) > len(hash) {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}

// transTree builds the merkle tree of the transactions and returns its
// root. A block without transactions has no tree and a zero root.
func transTree(trans []SignedTx) (*merkle.Tree[SignedTx], string, error) {
	if len(trans) == 0 {
		return nil, ZeroHash, nil
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return nil, "", err
	}

	return tree, tree.RootHex(), nil
}

// =============================================================================

// BlockData represents what is persisted for a block.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []SignedTx  `json:"trans"`
}

// NewBlockData constructs the value to persist.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Values(),
	}
}

// ToBlock converts a BlockData into a Block, checking the stored hash.
func ToBlock(data BlockData) (Block, error) {
	tree, _, err := transTree(data.Trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header: data.Header,
		Trans:  tree,
	}

	if data.Hash != "" && data.Hash != nb.Hash() {
		return Block{}, fmt.Errorf("block %d: stored hash %s doesn't match %s", data.Header.Number, data.Hash, nb.Hash())
	}

	return nb, nil
}

// ChecksumsEqual reports whether the checksums carried in the header match
// the ones computed locally.
func (h BlockHeader) ChecksumsEqual(wallets []byte, names []byte) bool {
	return bytes.Equal(h.WalletChecksum, wallets) && bytes.Equal(h.NamesChecksum, names)
}
