package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<resolved-url>    # 实际正文
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Resolve 返回 URL 对应的缓存文件绝对路径，纯计算，无 I/O。
	Resolve(rawURL string) string

	// IsStale 判断 path 处的缓存是否需要重新回源。文件不存在时返回 true；
	// 除“不存在”之外的 stat 失败以 ErrIO 返回。
	IsStale(path string) (bool, error)

	// Read 在缓存仍然新鲜时返回完整正文，否则返回 ErrNotFound。
	Read(ctx context.Context, rawURL string) ([]byte, error)

	// Write 通过临时文件 + rename 原子替换缓存正文，并把 ModTime 重置为当前时间。
	Write(ctx context.Context, rawURL string, content []byte) (*Entry, error)

	// List 枚举缓存目录中的全部条目，供诊断接口使用。
	List(ctx context.Context) ([]Entry, error)

	// Freshness 返回存储使用的过期判定器（TTL + 时钟）。
	Freshness() Freshness
}

// Entry 描述一个缓存文件。
type Entry struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// Age 返回条目相对 now 的年龄，不会为负。
func (e Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.ModTime)
	if age < 0 {
		return 0
	}
	return age
}

var (
	// ErrNotFound 表示缓存不存在或已过期，调用方应视为未命中并回源。
	ErrNotFound = errors.New("cache entry not found")
	// ErrIO 表示缓存目录读写失败，不能被当作未命中吞掉。
	ErrIO = errors.New("cache io failed")
)
