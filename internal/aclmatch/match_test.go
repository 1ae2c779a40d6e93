// Copyright 2025 Takhin Data, Inc.

package aclmatch

import "testing"

func TestMatchesSubtree(t *testing.T) {
	ok, err := Matches("/tmp/T/*.txt", "/tmp/T/subdir1/sub2/sub3/foo.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected '*' to span '/' and match nested subtree")
	}
}

func TestMatchesCaseInsensitive(t *testing.T) {
	ok, err := Matches("/Base/*.TXT", "/base/foo.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected case-insensitive match")
	}
}

func TestMatchesQuestionMark(t *testing.T) {
	ok, err := Matches("/tmp/?.txt", "/tmp/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected '?' to match a single rune")
	}

	ok, err = Matches("/tmp/?.txt", "/tmp/ab.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected '?' to match exactly one rune, not two")
	}
}

func TestMatchesExact(t *testing.T) {
	ok, err := Matches("self", "self")
	if err != nil || !ok {
		t.Fatalf("expected exact literal match, got ok=%v err=%v", ok, err)
	}
}

func TestMatchesNoMatch(t *testing.T) {
	ok, err := Matches("/tmp/T/*.txt", "/tmp/T/subdir2/bam.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected .zip to not match *.txt pattern")
	}
}

func TestMatchesEmptyPatternError(t *testing.T) {
	_, err := Matches("", "anything")
	if err == nil {
		t.Fatal("expected PatternError for empty pattern")
	}
	if _, ok := err.(*PatternError); !ok {
		t.Fatalf("expected *PatternError, got %T", err)
	}
}

func TestMatchesStarOnly(t *testing.T) {
	ok, err := Matches("*", "/anything/at/all")
	if err != nil || !ok {
		t.Fatalf("expected bare '*' to match everything, got ok=%v err=%v", ok, err)
	}
}
