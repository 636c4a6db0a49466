package core

import "errors"

// BlockHeader is a block's fixed-size metadata, witnessed by its proposing
// validator set (spec.md §3 "Block").
//
// Grounded on the shape core/common_structs.go's pre-VM LegacyBlockHeader
// used for the same role (previous hash, merkle root, timestamp, witness),
// generalized to the consensus-index/primary-index fields dBFT needs.
type BlockHeader struct {
	Version       byte
	PrevHash      UInt256
	MerkleRoot    UInt256
	Timestamp     uint64
	Nonce         uint64
	Index         uint32
	PrimaryIndex  byte
	NextConsensus UInt160
	Witness       Witness
}

func (h *BlockHeader) encodeUnsigned(bw *BinWriter) {
	bw.WriteByte(h.Version)
	bw.WriteBytes(h.PrevHash.Bytes())
	bw.WriteBytes(h.MerkleRoot.Bytes())
	bw.WriteU64(h.Timestamp)
	bw.WriteU64(h.Nonce)
	bw.WriteU32(h.Index)
	bw.WriteByte(h.PrimaryIndex)
	bw.WriteBytes(h.NextConsensus.Bytes())
}

// Hash is SHA-256 of the header's unsigned fields, mirroring how
// Transaction.Hash excludes its witness (spec.md §3 "The hash is the
// SHA-256 of its unsigned serialization").
func (h *BlockHeader) Hash() (UInt256, error) {
	bw := NewBinWriter()
	h.encodeUnsigned(bw)
	digest := SHA256(bw.Bytes())
	return UInt256FromBytes(digest[:])
}

// Encode renders the header's full wire form: unsigned fields followed by
// its single witness.
func (h *BlockHeader) Encode() []byte {
	bw := NewBinWriter()
	h.encodeUnsigned(bw)
	h.Witness.encode(bw)
	return bw.Bytes()
}

// DecodeBlockHeader parses the wire form Encode produces.
func DecodeBlockHeader(b []byte) (*BlockHeader, error) {
	return decodeBlockHeader(NewBinReader(b))
}

func decodeBlockHeader(br *BinReader) (*BlockHeader, error) {
	h := &BlockHeader{Version: br.ReadByte()}

	prevHash, err := UInt256FromBytes(br.ReadBytes(32))
	if err != nil {
		return nil, err
	}
	h.PrevHash = prevHash

	merkleRoot, err := UInt256FromBytes(br.ReadBytes(32))
	if err != nil {
		return nil, err
	}
	h.MerkleRoot = merkleRoot

	h.Timestamp = br.ReadU64()
	h.Nonce = br.ReadU64()
	h.Index = br.ReadU32()
	h.PrimaryIndex = br.ReadByte()

	nextConsensus, err := UInt160FromBytes(br.ReadBytes(20))
	if err != nil {
		return nil, err
	}
	h.NextConsensus = nextConsensus

	h.Witness = decodeWitness(br)
	return h, nil
}

// Block is a header plus the ordered transactions it commits (spec.md §3
// "Block"). Its MerkleRoot must equal ComputeMerkleRoot(Transactions).
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
}

// Hash delegates to the header, since a block's identity is its header hash.
func (b *Block) Hash() (UInt256, error) { return b.Header.Hash() }

// ComputeMerkleRoot derives a block's merkle root from its transactions'
// hashes, using the same leaf-hashing/pairwise-combine tree the rest of
// this package builds inclusion proofs with.
func ComputeMerkleRoot(txs []*Transaction) (UInt256, error) {
	if len(txs) == 0 {
		return UInt256{}, nil
	}
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		hash, err := tx.Hash()
		if err != nil {
			return UInt256{}, err
		}
		leaves[i] = hash.Bytes()
	}
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return UInt256{}, err
	}
	root := tree[len(tree)-1][0]
	return UInt256FromBytes(root[:])
}

// Validate checks that the block's declared merkle root matches its
// transactions and that every transaction passes its own format checks
// (spec.md §4.G "state-independent verification").
func (b *Block) Validate() error {
	root, err := ComputeMerkleRoot(b.Transactions)
	if err != nil {
		return err
	}
	if root != b.Header.MerkleRoot {
		return errors.New("block: merkle root mismatch")
	}
	for _, tx := range b.Transactions {
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Encode renders the block's full wire form: header followed by its
// transaction list.
func (b *Block) Encode() ([]byte, error) {
	bw := NewBinWriter()
	bw.WriteBytes(b.Header.Encode())
	bw.WriteVarUint(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		encoded, err := tx.Encode()
		if err != nil {
			return nil, err
		}
		bw.WriteVarBytes(encoded)
	}
	return bw.Bytes(), nil
}

// DecodeBlock parses the wire form Encode produces.
func DecodeBlock(b []byte) (*Block, error) {
	br := NewBinReader(b)

	header, err := decodeBlockHeader(br)
	if err != nil {
		return nil, err
	}

	blk := &Block{Header: *header}
	txCount := br.ReadVarUint()
	blk.Transactions = make([]*Transaction, txCount)
	for i := range blk.Transactions {
		txBytes := br.ReadVarBytes(maxTransactionSize)
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		blk.Transactions[i] = tx
	}
	return blk, nil
}
