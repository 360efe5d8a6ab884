package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteError reports a destination that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("export: write %s: %v", e.Path, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Exporter writes a document to its JSON and script destinations.
type Exporter struct {
	JSONPath   string
	ScriptPath string
}

// Export encodes doc once and writes both files, replacing existing content.
// Each file is written next to its destination and renamed into place, so a failed
// write never leaves a truncated artifact behind.
func (e Exporter) Export(doc *Document) error {
	payload, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(e.JSONPath, payload); err != nil {
		return err
	}
	return writeFileAtomic(e.ScriptPath, ScriptText(payload))
}

// Load reads a document previously written by Export, from either destination.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read model: %w", err)
	}
	return Decode(data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	if path == "" {
		return &WriteError{Path: path, Err: errors.New("empty destination path")}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Chmod(0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
