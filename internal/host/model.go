package host

import (
	"fmt"
	"sync"
)

// Block is a minimal Layer implementation.
type Block struct {
	mu   sync.RWMutex
	id   string
	attn Attention
}

// NewBlock returns a block with the given attention.
func NewBlock(id string, attn Attention) *Block {
	return &Block{id: id, attn: attn}
}

// ID implements Layer.
func (b *Block) ID() string { return b.id }

// Attention implements Layer.
func (b *Block) Attention() Attention {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attn
}

// SetAttention implements Layer.
func (b *Block) SetAttention(a Attention) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attn = a
}

// StaticModel is an in-process Model over a mutable list of blocks.
type StaticModel struct {
	mu     sync.RWMutex
	id     string
	blocks []*Block
}

// NewStaticModel builds a model with n blocks, each with its own
// ScaledDotProduct attention.
func NewStaticModel(id string, n int) *StaticModel {
	m := &StaticModel{id: id}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s.blocks.%d.attn", id, i)
		m.blocks = append(m.blocks, NewBlock(name, &ScaledDotProduct{Name: name}))
	}
	return m
}

// ID implements Model.
func (m *StaticModel) ID() string { return m.id }

// AttentionLayers implements Model.
func (m *StaticModel) AttentionLayers() []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, len(m.blocks))
	for i, b := range m.blocks {
		out[i] = b
	}
	return out
}

// Blocks returns the underlying blocks.
func (m *StaticModel) Blocks() []*Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Block(nil), m.blocks...)
}

// RemoveBlock drops the block at index i, simulating a structural change.
func (m *StaticModel) RemoveBlock(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.blocks) {
		return
	}
	m.blocks = append(m.blocks[:i], m.blocks[i+1:]...)
}
