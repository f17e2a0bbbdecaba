// Package session persists captured history as recorded sessions: a
// metadata block (timestamp, cavity parameters, mode set) plus the full
// channel set in two round-trippable encodings, tabular CSV and
// structured JSON. A failed load never touches an existing in-memory
// store; loading always builds a fresh one for the caller to swap in.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	csvFile      = "channels.csv"
	jsonFile     = "channels.json"
)

// Meta describes one recorded session.
type Meta struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Ts        float64      `json:"ts"`
	F0        float64      `json:"f0"`
	QL        float64      `json:"ql"`
	RoQ       float64      `json:"roq"`
	Beta      float64      `json:"beta"`
	Modes     mech.ModeSet `json:"mech_modes"`
	Samples   int          `json:"samples"`
}

// Store is a directory-per-session archive under a base directory.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Save writes one session (metadata + both encodings) and returns its ID.
func (s *Store) Save(hist *history.Store, cfg sim.Config, modes mech.ModeSet) (string, error) {
	snap := hist.Snapshot()
	meta := Meta{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Ts:        cfg.Ts,
		F0:        cfg.F0,
		QL:        cfg.QL,
		RoQ:       cfg.RoQ,
		Beta:      cfg.Beta,
		Modes:     modes,
		Samples:   len(snap.Samples),
	}

	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	if err := writeJSONFile(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}

	csvOut, err := os.Create(filepath.Join(dir, csvFile))
	if err != nil {
		return "", err
	}
	defer csvOut.Close()
	if err := WriteCSV(csvOut, snap); err != nil {
		return "", err
	}

	jsonOut, err := os.Create(filepath.Join(dir, jsonFile))
	if err != nil {
		return "", err
	}
	defer jsonOut.Close()
	return meta.ID, WriteJSON(jsonOut, &meta, snap)
}

// List returns the metadata of every stored session.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), metadataFile))
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Load reads a session's structured encoding into a fresh history store.
func (s *Store) Load(id string) (*history.Store, *Meta, error) {
	f, err := os.Open(filepath.Join(s.baseDir, id, jsonFile))
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", id, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// LoadMeta reads only the metadata block.
func (s *Store) LoadMeta(id string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// CSVPath returns the tabular encoding's path for a session.
func (s *Store) CSVPath(id string) string {
	return filepath.Join(s.baseDir, id, csvFile)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
