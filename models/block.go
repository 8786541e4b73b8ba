package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// GenesisPreviousHash is the previous hash recorded by the block at index 0.
const GenesisPreviousHash = "0"

// Block is one immutable entry of the vote ledger.
type Block struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	Index        uint64 `gorm:"column:block_index;uniqueIndex;not null" json:"index"`
	Timestamp    int64  `gorm:"not null" json:"timestamp"` // unix milliseconds
	Data         string `gorm:"type:text;not null" json:"data"`
	PreviousHash string `gorm:"size:64;not null" json:"previousHash"`
	Hash         string `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	Nonce        uint64 `gorm:"not null" json:"nonce"`
	Difficulty   uint8  `gorm:"not null" json:"difficulty"` // leading zero hex digits
}

func (Block) TableName() string {
	return "ledger_blocks"
}

// NewBlock builds an unmined block. Call Mine to fill in the nonce and hash.
func NewBlock(index uint64, timestamp int64, data string, previousHash string, difficulty uint8) *Block {
	block := &Block{
		Index:        index,
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: previousHash,
		Difficulty:   difficulty,
	}

	block.Mine()
	return block
}

// Mine increments the nonce until the hash satisfies the difficulty.
func (b *Block) Mine() {
	var nonce uint64
	for {
		b.Nonce = nonce
		b.Hash = b.CalculateHash()
		if meetsDifficulty(b.Hash, b.Difficulty) {
			return
		}
		nonce++
	}
}

// CalculateHash is the SHA-256 of index, timestamp, data, previous hash and nonce.
func (b *Block) CalculateHash() string {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	buffer.WriteString(b.Data)
	buffer.WriteString(b.PreviousHash)
	binary.Write(buffer, binary.BigEndian, b.Nonce)

	hash := sha256.Sum256(buffer.Bytes())
	return hex.EncodeToString(hash[:])
}

// Validate recomputes the hash and checks the difficulty predicate.
func (b *Block) Validate() bool {
	calculated := b.CalculateHash()
	if calculated != b.Hash {
		return false
	}
	return meetsDifficulty(calculated, b.Difficulty)
}

// ValidateChain checks every block and its linkage to the previous one.
func ValidateChain(blocks []*Block) bool {
	for i, block := range blocks {
		if block.Index != uint64(i) {
			return false
		}
		if !block.Validate() {
			return false
		}

		if i == 0 {
			if block.PreviousHash != GenesisPreviousHash {
				return false
			}
			continue
		}

		previous := blocks[i-1]
		if block.PreviousHash != previous.Hash {
			return false
		}
		if block.Timestamp < previous.Timestamp {
			return false
		}
	}

	return true
}

func meetsDifficulty(hash string, difficulty uint8) bool {
	return strings.HasPrefix(hash, strings.Repeat("0", int(difficulty)))
}
