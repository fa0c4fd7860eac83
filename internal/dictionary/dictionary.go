// Package dictionary supplies the word source consumed when minting
// product names/descriptions and customer names. The file loader this
// package wraps is an out-of-scope external collaborator; what matters to
// the rest of the module is the interface shape and an in-memory stand-in
// that satisfies it.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
)

// Dictionary is an indexable, fixed-size word source.
type Dictionary interface {
	Word(i int) string
	Size() int
}

// SliceDictionary is an in-memory Dictionary backed by a plain slice. It is
// the default construction used by tests and by cmd/heapothesys when no
// dictionary file is supplied.
type SliceDictionary struct {
	words []string
}

// NewSliceDictionary wraps words directly; the caller owns the slice and
// must not mutate it afterward.
func NewSliceDictionary(words []string) *SliceDictionary {
	return &SliceDictionary{words: words}
}

// Word returns the word at index i, wrapping modulo Size so any i is valid
// as long as Size() > 0.
func (d *SliceDictionary) Word(i int) string {
	n := len(d.words)
	if n == 0 {
		return ""
	}
	i %= n
	if i < 0 {
		i += n
	}
	return d.words[i]
}

// Size returns the word count.
func (d *SliceDictionary) Size() int { return len(d.words) }

// readStride is the fixed line-skip applied while loading a dictionary
// file, spreading retained samples across the source rather than reading
// it contiguously.
const readStride = 59

// LoadFile reads up to want words from r (one word per line, UTF-8),
// retaining every readStride-th line and wrapping back to the top with an
// increasing front offset on EOF until want words are collected or the
// file is empty. It returns a *SliceDictionary; the loader itself is a
// thin pass-through, not a general file-format library.
func LoadFile(r io.Reader, want int) (*SliceDictionary, error) {
	var all []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			all = append(all, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dictionary: reading source: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("dictionary: source contains no words")
	}
	if want <= 0 {
		return NewSliceDictionary(all), nil
	}

	out := make([]string, 0, want)
	offset := 0
	idx := 0
	for len(out) < want {
		out = append(out, all[idx])
		idx += readStride
		if idx >= len(all) {
			offset++
			idx = offset % len(all)
		}
	}
	return NewSliceDictionary(out), nil
}

// RandomWords draws n words from d using pick (typically a *rand.Rand's
// Intn), whitespace-joined into one field — the shared helper behind
// product name/description minting and customer name generation.
func RandomWords(d Dictionary, n int, pick func(size int) int) string {
	if n <= 0 || d.Size() == 0 {
		return ""
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.Word(pick(d.Size()))
	}
	s := out[0]
	for _, w := range out[1:] {
		s += " " + w
	}
	return s
}
