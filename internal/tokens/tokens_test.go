// File path: internal/tokens/tokens_test.go
package tokens

import "testing"

func TestCharactersRoundsUp(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"a":     1,
		"abcd":  1,
		"abcde": 2,
		"héllo": 2,
	}
	for input, want := range cases {
		if got := (Characters{}).Count(input); got != want {
			t.Fatalf("Count(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestCounterFunc(t *testing.T) {
	c := CounterFunc(func(s string) int { return len(s) * 2 })
	if got := c.Count("abc"); got != 6 {
		t.Fatalf("Count = %d", got)
	}
}

func TestTiktokenCountsCl100k(t *testing.T) {
	tk, err := NewTiktoken("")
	if err != nil {
		t.Fatalf("NewTiktoken: %v", err)
	}
	cases := map[string]int{
		"":              0,
		"hello world":   2,
		"hello, world!": 4,
	}
	for input, want := range cases {
		if got := tk.Count(input); got != want {
			t.Fatalf("Count(%q) = %d, want %d", input, got, want)
		}
	}
	if _, err := NewTiktoken("no_such_encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestDefaultUsesTiktoken(t *testing.T) {
	c := Default()
	if _, ok := c.(*Tiktoken); !ok {
		t.Fatalf("Default() = %T, want *Tiktoken", c)
	}
	if c != Default() {
		t.Fatal("Default() is not shared")
	}
	if got := c.Count("hello world"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
}
