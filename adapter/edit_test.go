package adapter

import (
	"strings"
	"testing"
)

func TestApplyEdits(t *testing.T) {
	t.Parallel()

	src := []byte(`<p title="Hi">Hello</p>`)
	edits := []MutationEdit{
		{Start: 14, End: 19, Replacement: `{t('p.hello')}`},
		{Start: 9, End: 13, Replacement: `{t('p.hi')}`},
	}
	// Replace the attribute value and the text node; order given is
	// ascending-agnostic, application is descending.
	got, err := ApplyEdits(src, edits)
	if err != nil {
		t.Fatalf("ApplyEdits() error: %v", err)
	}
	want := `<p title={t('p.hi')}>{t('p.hello')}</p>`
	if string(got) != want {
		t.Fatalf("ApplyEdits() = %q, want %q", got, want)
	}
	if string(src) != `<p title="Hi">Hello</p>` {
		t.Fatalf("ApplyEdits() mutated its input")
	}
}

func TestApplyEditsOverlap(t *testing.T) {
	t.Parallel()

	src := []byte("abcdef")
	_, err := ApplyEdits(src, []MutationEdit{
		{Start: 1, End: 4, Replacement: "x"},
		{Start: 3, End: 5, Replacement: "y"},
	})
	if err == nil || !strings.Contains(err.Error(), "overlapping") {
		t.Fatalf("ApplyEdits() error = %v, want overlap error", err)
	}
}

func TestApplyEditsBounds(t *testing.T) {
	t.Parallel()

	src := []byte("abc")
	if _, err := ApplyEdits(src, []MutationEdit{{Start: 1, End: 9, Replacement: "x"}}); err == nil {
		t.Fatalf("ApplyEdits() = nil error for span past the end")
	}
	if _, err := ApplyEdits(src, []MutationEdit{{Start: -1, End: 2, Replacement: "x"}}); err == nil {
		t.Fatalf("ApplyEdits() = nil error for negative start")
	}
}

func TestApplyEditsEmpty(t *testing.T) {
	t.Parallel()

	src := []byte("abc")
	got, err := ApplyEdits(src, nil)
	if err != nil {
		t.Fatalf("ApplyEdits() error: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("ApplyEdits() = %q, want unchanged", got)
	}
}
