package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// CommandFetcher 通过外部 curl 进程回源：curl -s -i -H "Origin: ..." <url>，
// 再用 ParseRaw 解析其输出。
type CommandFetcher struct {
	path string
	run  runFunc
}

// NewCommandFetcher 使用 path 指定的 curl 可执行文件。
func NewCommandFetcher(path string) *CommandFetcher {
	return &CommandFetcher{path: path, run: runCommand}
}

func (f *CommandFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := f.run(ctx, f.path, f.args(target.String(), OriginOf(target))...)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%w: %s: %v: %s", ErrTransport, f.path, err, msg)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, f.path, err)
	}
	return ParseRaw(stdout)
}

func (f *CommandFetcher) args(target, origin string) []string {
	return []string{"-s", "-S", "-i", "-H", "Origin: " + origin, target}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
