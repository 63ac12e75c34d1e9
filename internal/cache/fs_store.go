package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// 缓存键模式：flat 保持 URL 可读（可能碰撞），hash 使用 SHA-256 避免碰撞。
const (
	KeyModeFlat = "flat"
	KeyModeHash = "hash"
)

const tempPattern = ".cache-*"

// Options 控制 TTL、键模式以及测试时注入的时钟/随机源。
type Options struct {
	TTL     time.Duration
	KeyMode string
	Now     func() time.Time
	Rand    func() float64
}

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string, opts Options) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}

	keyMode := opts.KeyMode
	switch keyMode {
	case "":
		keyMode = KeyModeFlat
	case KeyModeFlat, KeyModeHash:
	default:
		return nil, fmt.Errorf("unsupported key mode: %s", opts.KeyMode)
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath:  abs,
		keyMode:   keyMode,
		freshness: NewFreshness(opts.TTL, opts.Now, opts.Rand),
		locks:     make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 URL 并发写入，同时复用 basePath。
type fileStore struct {
	basePath  string
	keyMode   string
	freshness Freshness

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Resolve(rawURL string) string {
	return filepath.Join(s.basePath, s.key(rawURL))
}

func (s *fileStore) IsStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if info.IsDir() {
		return true, nil
	}
	return s.freshness.Stale(info.ModTime()), nil
}

func (s *fileStore) Read(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath := s.Resolve(rawURL)
	stale, err := s.IsStale(filePath)
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, ErrNotFound
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return content, nil
}

func (s *fileStore) Write(ctx context.Context, rawURL string, content []byte) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.key(rawURL)
	unlock := s.lockEntry(key)
	defer unlock()

	filePath := filepath.Join(s.basePath, key)
	if err := s.writeAtomic(filePath, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	modTime := s.freshness.Now()
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return &Entry{
		Name:      key,
		FilePath:  filePath,
		SizeBytes: int64(len(content)),
		ModTime:   modTime,
	}, nil
}

func (s *fileStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.IsDir() || isTempName(d.Name()) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		entries = append(entries, Entry{
			Name:      d.Name(),
			FilePath:  filepath.Join(s.basePath, d.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	return entries, nil
}

// Freshness 暴露当前存储使用的过期判定器，诊断接口据此计算概率。
func (s *fileStore) Freshness() Freshness {
	return s.freshness
}

func (s *fileStore) writeAtomic(filePath string, content []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(content)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) key(rawURL string) string {
	if s.keyMode == KeyModeHash {
		sum := sha256.Sum256([]byte(rawURL))
		return hex.EncodeToString(sum[:])
	}
	return FlatKey(rawURL)
}

// FlatKey 把 "://" 与 "/" 替换为 "_"，得到可读但可能碰撞的文件名。
func FlatKey(rawURL string) string {
	return strings.ReplaceAll(strings.ReplaceAll(rawURL, "://", "_"), "/", "_")
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".cache-")
}
