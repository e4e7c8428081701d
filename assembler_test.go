package goEnroll

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type countingChecker struct {
	mu         sync.Mutex
	candidates []string
	err        error
}

func (c *countingChecker) Check(_ context.Context, candidate string) (CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate)
	return CheckResult{Status: StatusAwaitingInput}, c.err
}

func (c *countingChecker) submitted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.candidates...)
}

func TestAssemblerTypedDigitsSubmitOnce(t *testing.T) {
	checker := &countingChecker{}
	a := NewCodeInputAssembler(6, checker)
	ctx := context.Background()

	for i, d := range "48291" {
		if sub := a.SetDigit(ctx, i, string(d)); sub.Submitted {
			t.Fatalf("submitted before complete at slot %d", i)
		}
		if a.Focus() != i+1 {
			t.Fatalf("expected focus %d, got %d", i+1, a.Focus())
		}
	}
	sub := a.SetDigit(ctx, 5, "3")
	if !sub.Submitted {
		t.Fatal("expected submission on completion")
	}
	if a.Focus() != 5 {
		t.Fatalf("focus must stay on last slot, got %d", a.Focus())
	}

	// Re-typing the same digit changes nothing.
	if sub := a.SetDigit(ctx, 5, "3"); sub.Submitted {
		t.Fatal("unchanged entry was submitted twice")
	}
	if got := checker.submitted(); len(got) != 1 || got[0] != "482913" {
		t.Fatalf("unexpected submissions %v", got)
	}

	// Changing a slot re-arms.
	if sub := a.SetDigit(ctx, 5, "4"); !sub.Submitted {
		t.Fatal("changed entry should be submitted")
	}
	if got := checker.submitted(); len(got) != 2 || got[1] != "482914" {
		t.Fatalf("unexpected submissions %v", got)
	}
}

func TestAssemblerRejectsNonDigits(t *testing.T) {
	a := NewCodeInputAssembler(4, &countingChecker{})
	ctx := context.Background()

	for _, in := range []string{"a", "", "12", " ", "٣"} {
		a.SetDigit(ctx, 0, in)
	}
	a.SetDigit(ctx, -1, "1")
	a.SetDigit(ctx, 4, "1")

	for i, s := range a.Slots() {
		if s != "" {
			t.Fatalf("slot %d should be empty, got %q", i, s)
		}
	}
	if a.Focus() != 0 {
		t.Fatalf("rejected input moved focus to %d", a.Focus())
	}
}

func TestAssemblerPaste(t *testing.T) {
	checker := &countingChecker{}
	a := NewCodeInputAssembler(6, checker)
	ctx := context.Background()

	sub := a.Paste(ctx, "12a3456789")
	if !sub.Submitted {
		t.Fatal("expected paste to submit")
	}
	if got := checker.submitted(); len(got) != 1 || got[0] != "123456" {
		t.Fatalf("expected exactly one submission of 123456, got %v", got)
	}

	if sub := a.Paste(ctx, "123456"); sub.Submitted {
		t.Fatal("pasting the same code must not resubmit")
	}

	a.Clear()
	if sub := a.Paste(ctx, "98-7"); sub.Submitted {
		t.Fatal("short paste must not submit")
	}
	want := []string{"9", "8", "7", "", "", ""}
	for i, s := range a.Slots() {
		if s != want[i] {
			t.Fatalf("slot %d: want %q, got %q", i, want[i], s)
		}
	}
	if a.Focus() != 3 {
		t.Fatalf("expected focus 3 after short paste, got %d", a.Focus())
	}

	if sub := a.Paste(ctx, "abc"); sub.Submitted || a.Slots()[0] != "9" {
		t.Fatal("paste without digits must be ignored")
	}
}

func TestAssemblerBackspace(t *testing.T) {
	checker := &countingChecker{}
	a := NewCodeInputAssembler(4, checker)
	ctx := context.Background()

	a.Paste(ctx, "1234")
	a.BackspaceAt(3)
	if a.Slots()[3] != "" || a.Focus() != 3 {
		t.Fatalf("expected slot 3 cleared, got %v focus %d", a.Slots(), a.Focus())
	}
	a.BackspaceAt(3)
	if a.Focus() != 2 || a.Slots()[2] != "3" {
		t.Fatalf("backspace on empty slot should move focus back and keep content, got %v focus %d", a.Slots(), a.Focus())
	}
	a.BackspaceAt(0)
	a.BackspaceAt(0)
	if a.Focus() != 0 {
		t.Fatalf("focus must not go below 0, got %d", a.Focus())
	}

	a.SetDigit(ctx, 0, "1")
	if sub := a.SetDigit(ctx, 3, "4"); !sub.Submitted {
		t.Fatal("re-entered code should be submitted again")
	}
	if got := checker.submitted(); len(got) != 2 || got[1] != "1234" {
		t.Fatalf("unexpected submissions %v", got)
	}
}

func TestAssemblerDisabledDiscardsInput(t *testing.T) {
	checker := &countingChecker{err: errors.New("boom")}
	a := NewCodeInputAssembler(4, checker)
	ctx := context.Background()

	a.Disable()
	if sub := a.Paste(ctx, "1234"); sub.Submitted {
		t.Fatal("disabled assembler submitted")
	}
	if a.IsComplete() {
		t.Fatal("disabled assembler accepted input")
	}

	a.Enable()
	sub := a.Paste(ctx, "1234")
	if !sub.Submitted || sub.Err == nil {
		t.Fatalf("expected submission carrying checker error, got %+v", sub)
	}
	if !a.IsComplete() {
		t.Fatal("failure must not clear the slots")
	}
}
