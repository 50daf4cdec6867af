package logarchive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Archive owns the log directory of a workspace. Each process writes one
// session file; Export bundles every file in the directory into a zip.
type Archive struct {
	mu          sync.Mutex
	rootDir     string
	sessionFile string
	f           *os.File
}

func Open(rootDir string) (*Archive, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	sessionFile := filepath.Join(rootDir, "session-"+time.Now().Format("20060102-150405")+".log")
	f, err := os.OpenFile(sessionFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &Archive{rootDir: rootDir, sessionFile: sessionFile, f: f}, nil
}

func (a *Archive) SessionFile() string {
	if a == nil {
		return ""
	}
	return a.sessionFile
}

// Write appends p to the session file. It is safe for concurrent use and
// can back a slog handler directly.
func (a *Archive) Write(p []byte) (int, error) {
	if a == nil {
		return len(p), nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return 0, os.ErrClosed
	}
	return a.f.Write(p)
}

func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// Export writes every file under the logs directory into a zip at dest.
func (a *Archive) Export(dest string) error {
	if a == nil {
		return fmt.Errorf("log archive unavailable")
	}
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("destination path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f != nil {
		_ = a.f.Sync()
	}

	zipWriter := zip.NewWriter(out)
	err = filepath.Walk(a.rootDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absDest {
			return nil
		}
		rel, err := filepath.Rel(a.rootDir, path)
		if err != nil {
			return err
		}
		w, err := zipWriter.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		_ = zipWriter.Close()
		return fmt.Errorf("collect log files: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}
