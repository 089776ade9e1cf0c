package uvstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State records which uv binary is installed in the pytron home.
type State struct {
	// Version is the uv release that was installed.
	Version string `json:"version"`
	// Checksum is the base64-encoded SHA-512 of the installed binary.
	Checksum string `json:"checksum"`
	// InstalledAt is when the binary was written.
	InstalledAt time.Time `json:"installed_at"`
}

// Repository defines persistence operations for the installed-uv record.
type Repository interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// FileRepository persists the record to a JSON file in the pytron home.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// Filename is the state file name inside the pytron home.
const Filename = "uv-state.json"

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("uv state not found")

// filePermissions restricts the state file to the owning user.
const filePermissions = 0o600

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read uv state file: %w", err)
	}

	var state State
	if err = json.Unmarshal(contents, &state); err != nil {
		return nil, fmt.Errorf("decode uv state file: %w", err)
	}

	return &state, nil
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode uv state: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write uv state file: %w", err)
	}

	return nil
}
