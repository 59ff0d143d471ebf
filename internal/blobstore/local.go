package blobstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyLength    = 10
	keyAttempts  = 20
	tmpDirName   = ".tmp"
	keyAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxExtLength = 16
)

// ErrInvalidKey is returned for keys that do not name a stored file.
var ErrInvalidKey = errors.New("invalid blob key")

// LocalFiles stores attachments as flat files under root, each named by
// a random key plus the original extension.
type LocalFiles struct {
	root string
}

// NewLocalFiles creates the store rooted at root.
func NewLocalFiles(root string) (*LocalFiles, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, err
	}
	return &LocalFiles{root: abs}, nil
}

// Root returns the absolute storage directory.
func (l *LocalFiles) Root() string {
	return l.root
}

// Put streams r to a temp file and moves it under a fresh key.
func (l *LocalFiles) Put(ctx context.Context, fileName string, r io.Reader) (PutResult, error) {
	var zero PutResult
	if l == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, tmpDirName), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	ext := extension(fileName)
	for i := 0; i < keyAttempts; i++ {
		name, err := randomName(keyLength)
		if err != nil {
			cleanup()
			return zero, err
		}
		key := name + ext
		dst := filepath.Join(l.root, key)
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			cleanup()
			return zero, err
		}
		if err := os.Rename(tmpPath, dst); err != nil {
			cleanup()
			return zero, err
		}
		return PutResult{Key: key, SizeBytes: n}, nil
	}

	cleanup()
	return zero, fmt.Errorf("unable to generate unique blob key")
}

// Open returns the stored file for key.
func (l *LocalFiles) Open(ctx context.Context, key string) (*os.File, error) {
	if l == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes a stored file. Missing files are ignored.
func (l *LocalFiles) Delete(ctx context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// pathFromKey accepts only flat, non-hidden names.
func (l *LocalFiles) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) || filepath.Base(key) != key {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.root, key), nil
}

func extension(fileName string) string {
	ext := filepath.Ext(filepath.Base(fileName))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func randomName(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = keyAlphabet[int(b[i])%len(keyAlphabet)]
	}
	return string(out), nil
}
