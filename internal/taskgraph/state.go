package taskgraph

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/distbuild/distbuild/internal/errors"
)

const stateFileMode = 0o644

// Fingerprint is the content hash of a task's declared inputs and outputs after its last successful run.
type Fingerprint struct {
	Inputs  string `json:"inputs"`
	Outputs string `json:"outputs"`
}

// StateStore persists fingerprints between runs. A task is up to date when it declares outputs,
// every output exists, and both the input and output fingerprints match the recorded ones.
type StateStore struct {
	records map[string]Fingerprint
	path    string
	mu      sync.Mutex
}

// LoadStateStore reads the state file at path. A missing file yields an empty store.
func LoadStateStore(path string) (*StateStore, error) {
	store := &StateStore{
		path:    path,
		records: make(map[string]Fingerprint),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store, nil
		}

		return nil, errors.New(err)
	}

	if err := json.Unmarshal(data, &store.records); err != nil {
		return nil, errors.Errorf("corrupt task state file %s: %w", path, err)
	}

	return store, nil
}

// NewMemoryStateStore returns a store that is never written to disk.
func NewMemoryStateStore() *StateStore {
	return &StateStore{records: make(map[string]Fingerprint)}
}

// IsUpToDate reports whether the task can be skipped.
func (store *StateStore) IsUpToDate(task *Task) (bool, error) {
	if !task.HasOutputs() {
		return false, nil
	}

	store.mu.Lock()
	recorded, ok := store.records[task.Name]
	store.mu.Unlock()

	if !ok {
		return false, nil
	}

	for _, output := range task.Outputs {
		if _, err := os.Stat(output); err != nil {
			return false, nil //nolint:nilerr
		}
	}

	current, err := fingerprint(task)
	if err != nil {
		return false, err
	}

	return current == recorded, nil
}

// Record stores the current fingerprint of the task.
func (store *StateStore) Record(task *Task) error {
	if !task.HasOutputs() {
		return nil
	}

	current, err := fingerprint(task)
	if err != nil {
		return err
	}

	store.mu.Lock()
	store.records[task.Name] = current
	store.mu.Unlock()

	return nil
}

// Forget drops the recorded fingerprint of the named task.
func (store *StateStore) Forget(name string) {
	store.mu.Lock()
	delete(store.records, name)
	store.mu.Unlock()
}

// Save writes the store to its file, replacing the previous content atomically.
func (store *StateStore) Save() error {
	if store.path == "" {
		return nil
	}

	store.mu.Lock()
	data, err := json.MarshalIndent(store.records, "", "  ")
	store.mu.Unlock()

	if err != nil {
		return errors.New(err)
	}

	if err := os.MkdirAll(filepath.Dir(store.path), os.ModePerm); err != nil {
		return errors.New(err)
	}

	tmp := store.path + ".tmp"
	if err := os.WriteFile(tmp, data, stateFileMode); err != nil {
		return errors.New(err)
	}

	return errors.WithStackTrace(os.Rename(tmp, store.path))
}

func fingerprint(task *Task) (Fingerprint, error) {
	digest := xxhash.New()

	keys := make([]string, 0, len(task.Properties))
	for key := range task.Properties {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		writeField(digest, "property", key+"="+task.Properties[key])
	}

	if err := hashPaths(digest, task.Inputs); err != nil {
		return Fingerprint{}, err
	}

	inputs := strconv.FormatUint(digest.Sum64(), 16)

	digest.Reset()

	if err := hashPaths(digest, task.Outputs); err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{Inputs: inputs, Outputs: strconv.FormatUint(digest.Sum64(), 16)}, nil
}

func hashPaths(digest *xxhash.Digest, paths []string) error {
	for _, root := range paths {
		writeField(digest, "root", root)

		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeField(digest, "missing", root)
				continue
			}

			return errors.New(err)
		}

		if !info.IsDir() {
			if err := hashFile(digest, root); err != nil {
				return err
			}

			continue
		}

		// WalkDir visits entries in lexical order, which keeps the hash stable.
		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			if entry.IsDir() {
				writeField(digest, "dir", filepath.ToSlash(rel))
				return nil
			}

			writeField(digest, "file", filepath.ToSlash(rel))

			return hashFile(digest, path)
		})
		if err != nil {
			return errors.New(err)
		}
	}

	return nil
}

func hashFile(digest *xxhash.Digest, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.New(err)
	}
	defer file.Close()

	if _, err := io.Copy(digest, file); err != nil {
		return errors.New(err)
	}

	return nil
}

func writeField(digest *xxhash.Digest, kind, value string) {
	_, _ = digest.WriteString(kind + ":" + value + "\x00")
}
