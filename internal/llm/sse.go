// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"bytes"
	"io"
)

// MaxChunkSize is the largest single SSE line accepted.
const MaxChunkSize = 64 * 1024

// SSEReader pulls data payloads out of a Server-Sent Events body.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a reader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxChunkSize)
	return &SSEReader{scanner: sc}
}

// ReadData returns the next data payload with the field name and surrounding
// space removed. Other fields, comments and blank lines are skipped. Returns
// io.EOF at end of body.
func (s *SSEReader) ReadData() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
