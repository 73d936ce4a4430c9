package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "exactly ten", n: 11, want: "exactly ten"},
		{in: "a longer team name", n: 10, want: "a longe..."},
		{in: "abc", n: 2, want: "ab"},
		{in: "Université Laval", n: 12, want: "Universit..."},
		{in: "北海道大学チーム", n: 5, want: "北海..."},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) produced invalid utf8: %q", tc.in, tc.n, got)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abcd"); got != "abcd" {
		t.Fatalf("short input: got %q", got)
	}
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("long input: got %q", got)
	}
	got := shortID("ユーザー識別子テスト長い")
	if got != "ユーザー識別子テ" {
		t.Fatalf("multibyte input: got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("multibyte input produced invalid utf8: %q", got)
	}
}
