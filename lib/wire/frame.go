// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxFrameSize bounds one frame, terminator included. Larger lines are
// rejected whole; see [ErrFrameTooLong].
const MaxFrameSize = 64 << 10

// ErrFrameTooLong is returned by [FrameReader.ReadFrame] when a line
// exceeds MaxFrameSize. The offending line has already been consumed
// through its terminator, so the next ReadFrame starts on a fresh line.
var ErrFrameTooLong = errors.New("wire: frame exceeds maximum size")

// FrameReader splits a byte stream into frames. It is not safe for
// concurrent use; each connection has exactly one reading goroutine.
type FrameReader struct {
	reader *bufio.Reader
}

// NewFrameReader returns a FrameReader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{reader: bufio.NewReaderSize(r, MaxFrameSize)}
}

// ReadFrame returns the next line without its terminator. A final line
// that ends at EOF without a terminator is returned as a frame; the call
// after it returns io.EOF.
func (f *FrameReader) ReadFrame() (string, error) {
	line, err := f.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", f.discardLine()
	}
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return trimTerminator(string(line)), nil
		}
		return "", err
	}
	return trimTerminator(string(line)), nil
}

// discardLine consumes the remainder of an oversized line. It returns
// ErrFrameTooLong, or the underlying read error if the stream ended
// first.
func (f *FrameReader) discardLine() error {
	for {
		_, err := f.reader.ReadSlice('\n')
		if err == nil {
			return ErrFrameTooLong
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// ReadPrompt consumes exactly len(prompt) bytes and verifies that they
// are the prompt. The relay's username prompt is the one frame that is
// not newline-terminated, so it cannot be read with ReadFrame.
func (f *FrameReader) ReadPrompt(prompt string) error {
	buffer := make([]byte, len(prompt))
	if _, err := io.ReadFull(f.reader, buffer); err != nil {
		return fmt.Errorf("wire: reading prompt: %w", err)
	}
	if string(buffer) != prompt {
		return fmt.Errorf("wire: unexpected prompt %q", buffer)
	}
	return nil
}

// AppendTerminator returns line with a trailing newline, adding one only
// if it is missing.
func AppendTerminator(line string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + "\n"
}

func trimTerminator(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
