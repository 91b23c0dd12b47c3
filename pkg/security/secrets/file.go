package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FileProvider reads each secret from a file of the same name in a
// directory. Files must be regular and, outside Windows, readable by the
// owner only.
type FileProvider struct {
	BasePath string
}

// NewFileProvider returns a provider reading from basePath, which must be a
// directory.
func NewFileProvider(basePath string) (*FileProvider, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", basePath)
	}
	return &FileProvider{BasePath: basePath}, nil
}

// GetSecret returns the trimmed contents of the file for name.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	path := filepath.Join(p.BasePath, name)

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
		}
	}

	// #nosec G304 - name is a single path element inside BasePath
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Name returns "file".
func (p *FileProvider) Name() string {
	return "file"
}
