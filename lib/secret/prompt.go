// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNoTerminal reports that an interactive prompt was requested but the
// input is not a terminal. Callers fall back to ReadFromPath.
var ErrNoTerminal = errors.New("secret: no terminal available for interactive prompt")

// ErrMismatch reports that a confirmed prompt received two different
// entries.
var ErrMismatch = errors.New("secret: entries do not match")

// PromptPassword writes prompt to output and reads a line from input
// with echo disabled. When confirm is set the user is asked a second
// time and the entries must match. The entered bytes are moved into a
// Buffer and every heap copy is zeroed.
func PromptPassword(input *os.File, output io.Writer, prompt string, confirm bool) (*Buffer, error) {
	fileDescriptor := int(input.Fd())
	if !term.IsTerminal(fileDescriptor) {
		return nil, ErrNoTerminal
	}
	read := func(label string) ([]byte, error) {
		fmt.Fprint(output, label)
		entry, err := term.ReadPassword(fileDescriptor)
		fmt.Fprintln(output)
		return entry, err
	}
	return promptEntries(read, prompt, confirm, NewFromBytes)
}

func promptEntries(read func(label string) ([]byte, error), prompt string, confirm bool, store func([]byte) (*Buffer, error)) (*Buffer, error) {
	first, err := read(prompt)
	if err != nil {
		Zero(first)
		return nil, fmt.Errorf("secret: reading entry: %w", err)
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("secret: entry is empty")
	}

	if confirm {
		second, err := read("Confirm " + prompt)
		if err != nil {
			Zero(first)
			Zero(second)
			return nil, fmt.Errorf("secret: reading confirmation: %w", err)
		}
		match := subtle.ConstantTimeCompare(first, second) == 1
		Zero(second)
		if !match {
			Zero(first)
			return nil, ErrMismatch
		}
	}

	buffer, err := store(first)
	if err != nil {
		Zero(first)
		return nil, err
	}
	return buffer, nil
}
