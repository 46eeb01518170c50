// Package tokenizer loads the vocabulary data the server decodes output with.
// The scheduler core only depends on the Tokenizer interface; the concrete
// vocabulary format is a collaborator concern.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"

	"rwkvd/internal/common/fsutil"
)

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode tokenizes text greedily (longest known piece first).
	Encode(text string) []int
	// Decode returns the byte content of one token id.
	Decode(id int) []byte
	// EOS is the end-of-text token id.
	EOS() int
}

// Vocab is a byte-level vocabulary backed by an id -> piece table.
type Vocab struct {
	pieces map[string]int
	byID   [][]byte
	maxLen int
	eosID  int
}

// Load reads a JSON vocabulary file: an object mapping token piece to id.
// Token id 0 is the end-of-text marker.
func Load(path string) (*Vocab, error) {
	p, err := fsutil.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("vocab path: %w", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse vocab: %w", err)
	}
	return New(raw), nil
}

// New builds a Vocab from a piece -> id map.
func New(pieces map[string]int) *Vocab {
	v := &Vocab{pieces: make(map[string]int, len(pieces))}
	max := 0
	for piece, id := range pieces {
		v.pieces[piece] = id
		if id >= max {
			max = id
		}
		if len(piece) > v.maxLen {
			v.maxLen = len(piece)
		}
	}
	v.byID = make([][]byte, max+1)
	for piece, id := range pieces {
		v.byID[id] = []byte(piece)
	}
	return v
}

// Encode tokenizes text greedily, always taking the longest piece that matches
// at the current position. Unknown bytes are skipped.
func (v *Vocab) Encode(text string) []int {
	b := []byte(text)
	var out []int
	for i := 0; i < len(b); {
		match, matchLen := -1, 0
		limit := v.maxLen
		if rest := len(b) - i; rest < limit {
			limit = rest
		}
		for l := limit; l >= 1; l-- {
			if id, ok := v.pieces[string(b[i:i+l])]; ok {
				match, matchLen = id, l
				break
			}
		}
		if match < 0 {
			i++
			continue
		}
		out = append(out, match)
		i += matchLen
	}
	return out
}

// Decode returns the byte content of one token id, nil for unknown ids.
func (v *Vocab) Decode(id int) []byte {
	if id < 0 || id >= len(v.byID) {
		return nil
	}
	return v.byID[id]
}

// EOS returns the end-of-text token id.
func (v *Vocab) EOS() int { return v.eosID }
