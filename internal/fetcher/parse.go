package fetcher

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

var headerBodySeparator = []byte("\r\n\r\n")

// ParseRaw 把 "headers \r\n\r\n body" 形式的原始输出拆成结构化响应。
// 只处理第一个头部块；缺少分隔符时整段输出都视为头部，正文为空。
// 状态行的第二个字段必须是数字状态码；没有 ": " 的头部行会被丢弃。
func ParseRaw(raw []byte) (*Response, error) {
	headerBlock, body, _ := bytes.Cut(raw, headerBodySeparator)

	text := strings.ToValidUTF8(string(headerBlock), "\uFFFD")
	lines := strings.Split(text, "\n")

	status, err := parseStatusLine(strings.TrimRight(lines[0], "\r"))
	if err != nil {
		return nil, err
	}

	headers := make([]Header, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		headers = append(headers, Header{Name: name, Value: value})
	}

	return &Response{
		StatusCode: status,
		Headers:    headers,
		Body:       body,
	}, nil
}

func parseStatusLine(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: status line %q has no status code", ErrParse, line)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("%w: status code %q is not numeric", ErrParse, fields[1])
	}
	if code < 100 || code > 999 {
		return 0, fmt.Errorf("%w: status code %d out of range", ErrParse, code)
	}
	return code, nil
}
