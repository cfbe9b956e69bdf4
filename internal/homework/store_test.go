package homework

import "testing"

func TestStoreLastWriteWins(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Set("Linux", "read chapter 3")
	s.Set("Linux", "finish lab 2")

	got, ok := s.Get("Linux")
	if !ok {
		t.Fatal("note missing after Set")
	}
	if got != "finish lab 2" {
		t.Fatalf("Get = %q, want last written note", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreGetAbsent(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if _, ok := s.Get("Math"); ok {
		t.Fatal("Get reported a note that was never set")
	}
}

func TestStoreAllSortedBySubject(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Set("Web", "mockups")
	s.Set("Algorithms", "problem set 4")
	s.Set("Linux", "lab 2")

	got := s.All()
	want := []Note{
		{Subject: "Algorithms", Text: "problem set 4"},
		{Subject: "Linux", Text: "lab 2"},
		{Subject: "Web", Text: "mockups"},
	}
	if len(got) != len(want) {
		t.Fatalf("All returned %d notes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("All[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
