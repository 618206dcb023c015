package logtail

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
)

const readBlockSize = 64 * 1024

// LastLines returns up to n trailing lines of the file at path, oldest first.
// It reads backwards in blocks so large logs are not loaded whole.
func LastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("failed to open log file", err).WithContext("path", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.NewIOError("failed to stat log file", err).WithContext("path", path)
	}

	offset := info.Size()
	var buf []byte

	// trailing newline terminates the last line rather than starting an empty one
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := int64(readBlockSize)
		if offset < size {
			size = offset
		}
		offset -= size

		block := make([]byte, size)
		if _, err := f.ReadAt(block, offset); err != nil && err != io.EOF {
			return nil, errors.NewIOError("failed to read log file", err).WithContext("path", path)
		}
		buf = append(block, buf...)
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return []string{}, nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

// Follow copies data appended to path into w until ctx is done.
// A truncated file is read again from the start.
func Follow(ctx context.Context, path string, w io.Writer, interval time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIOError("failed to open log file", err).WithContext("path", path)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.NewIOError("failed to seek log file", err).WithContext("path", path)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		info, err := f.Stat()
		if err != nil {
			return errors.NewIOError("failed to stat log file", err).WithContext("path", path)
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return errors.NewIOError("failed to seek log file", err).WithContext("path", path)
		}
		written, err := io.CopyN(w, f, info.Size()-offset)
		offset += written
		if err != nil && err != io.EOF {
			return errors.NewIOError("failed to copy log data", err).WithContext("path", path)
		}
	}
}
