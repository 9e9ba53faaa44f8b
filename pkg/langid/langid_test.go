package langid

import "testing"

func TestIdentify(t *testing.T) {
	d, err := New(Options{Languages: []string{"en", "pl", "de"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		text string
		want string
	}{
		{"Litwo, ojczyzno moja! Ty jesteś jak zdrowie. Ile cię trzeba cenić, ten tylko się dowie, kto cię stracił.", "pl"},
		{"The quick brown fox jumps over the lazy dog while the farmer watches from the porch.", "en"},
		{"   ", ""},
	}
	for _, tt := range tests {
		lang, conf := d.Identify(tt.text)
		if lang != tt.want {
			t.Errorf("Identify(%q) = %q, want %q", tt.text, lang, tt.want)
		}
		if conf < 0 || conf > 1 {
			t.Errorf("Identify(%q) confidence = %v, want in [0, 1]", tt.text, conf)
		}
	}
}

func TestParseLanguages(t *testing.T) {
	if _, err := New(Options{Languages: []string{"pl", "zz"}}); err == nil {
		t.Error("New() should reject unknown code")
	}
	if _, err := New(Options{Languages: []string{"pl"}}); err == nil {
		t.Error("New() should reject a single candidate language")
	}
}
