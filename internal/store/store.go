// Package store persists the whole game document. Every backend replaces the
// document in a single atomic step, so readers never see a partial write.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"reflexduel/internal/domain"
)

// Store reads and writes the complete state document.
type Store interface {
	// Load returns the stored document, or an empty one if nothing is stored yet.
	Load(ctx context.Context) (*domain.State, error)
	// Save atomically replaces the stored document.
	Save(ctx context.Context, st *domain.State) error
	Ping(ctx context.Context) error
	Close() error
}

func encode(st *domain.State) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.State, error) {
	st := domain.NewState()
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.Normalize()
	return st, nil
}
