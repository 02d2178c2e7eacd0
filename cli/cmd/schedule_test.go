package cmd

import "testing"

func TestArgs2Dict(t *testing.T) {
	got := args2dict([]string{"--n", "10", "--salt", "abc"})
	if got["n"] != "10" || got["salt"] != "abc" {
		t.Fatalf("args2dict = %v, want n=10 salt=abc", got)
	}
}

func TestArgs2Dict_OddTrailingArgIgnored(t *testing.T) {
	got := args2dict([]string{"--n", "10", "--dangling"})
	if len(got) != 1 || got["n"] != "10" {
		t.Fatalf("args2dict = %v, want only n=10", got)
	}
}

func TestArgs2Dict_Empty(t *testing.T) {
	got := args2dict(nil)
	if len(got) != 0 {
		t.Fatalf("args2dict(nil) = %v, want empty", got)
	}
}
