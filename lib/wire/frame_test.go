// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadFrame(t *testing.T) {
	reader := NewFrameReader(strings.NewReader("alice\r\nbob: hi\n\ntail"))

	for _, want := range []string{"alice", "bob: hi", "", "tail"} {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v (want %q)", err, want)
		}
		if got != want {
			t.Errorf("ReadFrame = %q, want %q", got, want)
		}
	}
	if _, err := reader.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame after tail: err = %v, want io.EOF", err)
	}
}

func TestReadFrame_TooLong(t *testing.T) {
	oversized := strings.Repeat("x", MaxFrameSize+10)
	reader := NewFrameReader(strings.NewReader(oversized + "\nnext\n"))

	if _, err := reader.ReadFrame(); !errors.Is(err, ErrFrameTooLong) {
		t.Fatalf("ReadFrame(oversized): err = %v, want ErrFrameTooLong", err)
	}
	got, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame after oversized: %v", err)
	}
	if got != "next" {
		t.Errorf("frame after oversized line = %q, want %q", got, "next")
	}
}

func TestReadFrame_TooLongAtEOF(t *testing.T) {
	reader := NewFrameReader(strings.NewReader(strings.Repeat("x", MaxFrameSize*2)))
	if _, err := reader.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame: err = %v, want io.EOF", err)
	}
}

func TestReadFrame_LargestAccepted(t *testing.T) {
	line := strings.Repeat("y", MaxFrameSize-1)
	reader := NewFrameReader(strings.NewReader(line + "\n"))
	got, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != len(line) {
		t.Errorf("frame length = %d, want %d", len(got), len(line))
	}
}

func TestReadPrompt(t *testing.T) {
	reader := NewFrameReader(strings.NewReader(HandshakePrompt + "Connected! Users online: alice\n"))
	if err := reader.ReadPrompt(HandshakePrompt); err != nil {
		t.Fatalf("ReadPrompt: %v", err)
	}
	line, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if line != "Connected! Users online: alice" {
		t.Errorf("line after prompt = %q", line)
	}
}

func TestReadPrompt_Mismatch(t *testing.T) {
	reader := NewFrameReader(strings.NewReader("Who goes there? and more"))
	if err := reader.ReadPrompt(HandshakePrompt); err == nil {
		t.Fatal("ReadPrompt accepted a foreign prompt")
	}
}

func TestAppendTerminator(t *testing.T) {
	if got := AppendTerminator("a"); got != "a\n" {
		t.Errorf("AppendTerminator(a) = %q", got)
	}
	if got := AppendTerminator("a\n"); got != "a\n" {
		t.Errorf("AppendTerminator(a\\n) = %q", got)
	}
}
