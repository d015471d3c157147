package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/san-kum/recore/internal/dynamo"
)

// SQLite keeps every run in a single table: metadata as JSON and the state
// history as packed little-endian float64 rows of [t, P, C_1..C_6].
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// sortableTime keeps a fixed width so created_at orders lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// SQLitePath is the database file used for a data directory.
func SQLitePath(dir string) string {
	return filepath.Join(dir, "recore.db")
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "recore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		metadata BLOB NOT NULL,
		dim INTEGER NOT NULL,
		states BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	prepare(&meta, result)

	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	dim, blob := packStates(result.Times, result.States)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`INSERT INTO runs(id, created_at, metadata, dim, states) VALUES(?,?,?,?,?)`,
		meta.ID, meta.Timestamp.UTC().Format(sortableTime), payload, dim, blob); err != nil {
		return "", fmt.Errorf("insert run %s: %w", meta.ID, err)
	}
	return meta.ID, nil
}

func (s *SQLite) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT metadata FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLite) Load(id string) (*RunMetadata, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT metadata FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select run %s: %w", id, err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (s *SQLite) LoadStates(id string) ([][]float64, []float64, error) {
	var (
		dim  int
		blob []byte
	)
	err := s.db.QueryRow(`SELECT dim, states FROM runs WHERE id = ?`, id).Scan(&dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select states %s: %w", id, err)
	}
	return unpackStates(dim, blob)
}

func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }

func packStates(times []float64, states []dynamo.State) (int, []byte) {
	if len(states) == 0 {
		return 0, []byte{}
	}
	dim := len(states[0])
	buf := make([]byte, 0, len(states)*(dim+1)*8)
	for i, x := range states {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(times[i]))
		for j := 0; j < dim; j++ {
			v := 0.0
			if j < len(x) {
				v = x[j]
			}
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return dim, buf
}

func unpackStates(dim int, blob []byte) ([][]float64, []float64, error) {
	rowSize := (dim + 1) * 8
	if dim == 0 || len(blob) == 0 {
		return [][]float64{}, []float64{}, nil
	}
	if len(blob)%rowSize != 0 {
		return nil, nil, fmt.Errorf("corrupt state blob: %d bytes for dimension %d", len(blob), dim)
	}
	n := len(blob) / rowSize
	times := make([]float64, n)
	states := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := blob[i*rowSize:]
		times[i] = math.Float64frombits(binary.LittleEndian.Uint64(row))
		state := make([]float64, dim)
		for j := range state {
			state[j] = math.Float64frombits(binary.LittleEndian.Uint64(row[(j+1)*8:]))
		}
		states[i] = state
	}
	return states, times, nil
}
