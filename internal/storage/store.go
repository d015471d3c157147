// Package storage persists transients: the run metadata plus the full
// [P, C_1..C_6] history, either as a directory per run or in SQLite.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

// ErrRunNotFound is returned by Load and LoadStates for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

type RunMetadata struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Timestamp  time.Time          `json:"timestamp"`
	Rho        float64            `json:"rho"`
	TEnd       float64            `json:"t_end"`
	Dt         float64            `json:"dt"`
	Integrator string             `json:"integrator"`
	Constants  kinetics.Constants `json:"constants"`
	Samples    int                `json:"samples"`
	Metrics    metrics.Values     `json:"metrics"`
}

// Request rebuilds the transient request the run was made with.
func (m *RunMetadata) Request() kinetics.Request {
	return kinetics.Request{Rho: m.Rho, TEnd: m.TEnd, Dt: m.Dt}
}

type Store interface {
	// Save assigns meta.ID and meta.Timestamp when they are empty and
	// returns the ID.
	Save(meta RunMetadata, result *dynamo.Result) (string, error)
	// List returns runs oldest first.
	List() ([]RunMetadata, error)
	Load(id string) (*RunMetadata, error)
	LoadStates(id string) (states [][]float64, times []float64, err error)
	Close() error
}

// Open returns the backend named by cfg.Backend rooted at dir.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		fs := NewFS(cfg.Dir)
		if err := fs.Init(); err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		db, err := NewSQLite(SQLitePath(cfg.Dir))
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

func prepare(meta *RunMetadata, result *dynamo.Result) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if meta.ID == "" {
		meta.ID = newRunID(meta.Timestamp)
	}
	meta.Samples = len(result.States)
	if meta.Metrics == nil && result.Metrics != nil {
		meta.Metrics = metrics.Values(result.Metrics)
	}
}

func newRunID(ts time.Time) string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run_%s", ts.Format("20060102T150405.000"))
	}
	return fmt.Sprintf("run_%s_%s", ts.Format("20060102T150405"), hex.EncodeToString(b[:]))
}
