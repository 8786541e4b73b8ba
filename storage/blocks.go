package storage

import (
	"context"

	"secure-voting/models"
)

// LoadBlocks returns the whole ledger ordered by index.
func (s *Store) LoadBlocks(ctx context.Context) ([]*models.Block, error) {
	var blocks []*models.Block
	if err := s.db.WithContext(ctx).Order("block_index ASC").Find(&blocks).Error; err != nil {
		return nil, translate(err)
	}
	return blocks, nil
}

// SaveBlock persists a mined block.
func (s *Store) SaveBlock(ctx context.Context, block *models.Block) error {
	return translate(s.db.WithContext(ctx).Create(block).Error)
}

// FindBlock loads the block at index.
func (s *Store) FindBlock(ctx context.Context, index uint64) (*models.Block, error) {
	var block models.Block
	if err := s.db.WithContext(ctx).Where("block_index = ?", index).First(&block).Error; err != nil {
		return nil, translate(err)
	}
	return &block, nil
}
