package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/san-kum/recore/internal/kinetics"
)

// Memory is an in-process LRU cache. It is safe for concurrent use.
type Memory struct {
	lru *lru.Cache[string, kinetics.Trajectory]
}

func NewMemory(size int) (*Memory, error) {
	l, err := lru.New[string, kinetics.Trajectory](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: l}, nil
}

func (m *Memory) Get(_ context.Context, key string) (kinetics.Trajectory, error) {
	tr, ok := m.lru.Get(key)
	if !ok {
		return kinetics.Trajectory{}, ErrMiss
	}
	return tr.Clone(), nil
}

func (m *Memory) Put(_ context.Context, key string, tr kinetics.Trajectory) error {
	m.lru.Add(key, tr.Clone())
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }
