package tokenizer

import (
	"os"
	"path/filepath"
	"testing"
)

func testVocab() *Vocab {
	return New(map[string]int{
		"<eot>": 0,
		"Hello": 1,
		"Hell":  2,
		"o":     3,
		"\n":    4,
		"World": 5,
		" ":     6,
	})
}

func TestEncodeGreedyLongestMatch(t *testing.T) {
	v := testVocab()
	got := v.Encode("Hello\nWorld")
	want := []int{1, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestEncodeSkipsUnknownBytes(t *testing.T) {
	v := testVocab()
	got := v.Encode("Hello?World")
	want := []int{1, 5}
	if len(got) != len(want) || got[0] != 1 || got[1] != 5 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestDecode(t *testing.T) {
	v := testVocab()
	if string(v.Decode(5)) != "World" {
		t.Fatalf("decode 5 = %q", v.Decode(5))
	}
	if v.Decode(99) != nil {
		t.Fatalf("unknown id should decode to nil")
	}
	if v.Decode(-1) != nil {
		t.Fatalf("negative id should decode to nil")
	}
}

func TestEOS(t *testing.T) {
	if testVocab().EOS() != 0 {
		t.Fatalf("eos id should be 0")
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "vocab.json")
	if err := os.WriteFile(p, []byte(`{"a": 1, "b": 2}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := v.Encode("ab")
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("encode = %v", ids)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing vocab")
	}
}
