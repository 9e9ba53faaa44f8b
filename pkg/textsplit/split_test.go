package textsplit

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxBytes int
		want     []string
	}{
		{"empty", "", 10, nil},
		{"fits", "short text", 100, []string{"short text"}},
		{"disabled", "alpha beta gamma", 0, []string{"alpha beta gamma"}},
		{"at whitespace", "alpha beta gamma", 11, []string{"alpha beta ", "gamma"}},
		{"exact boundary", "aaaa bbbb", 5, []string{"aaaa ", "bbbb"}},
		{"oversized token", "tiny enormoustoken end", 6, []string{"tiny ", "enormoustoken ", "end"}},
		{"newlines count as breaks", "one\ntwo\nthree", 8, []string{"one\ntwo\n", "three"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.maxBytes)
			if len(got) != len(tt.want) {
				t.Fatalf("Split() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Split()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitNeverCutsTokens(t *testing.T) {
	words := []string{"zażółć", "gęślą", "jaźń", "and", "some", "ascii", "tokens", "here"}
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString(words[i%len(words)])
		sb.WriteString(" ")
	}
	text := sb.String()

	chunks := Split(text, 37)
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not concatenate back to the input")
	}
	for i, c := range chunks {
		for _, f := range strings.Fields(c) {
			found := false
			for _, w := range words {
				if f == w {
					found = true
				}
			}
			if !found {
				t.Fatalf("chunk %d contains a cut token %q", i, f)
			}
		}
		if len(c) > 37 {
			t.Errorf("chunk %d is %d bytes, want <= 37", i, len(c))
		}
	}
}
