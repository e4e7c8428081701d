package goEnroll

import (
	"context"
	"strings"
	"sync"
)

// CodeChecker is what a [CodeInputAssembler] submits completed codes to.
// *VerificationSession satisfies it.
type CodeChecker interface {
	Check(ctx context.Context, candidate string) (CheckResult, error)
}

// CodeCheckerFunc adapts a function to [CodeChecker].
type CodeCheckerFunc func(ctx context.Context, candidate string) (CheckResult, error)

func (f CodeCheckerFunc) Check(ctx context.Context, candidate string) (CheckResult, error) {
	return f(ctx, candidate)
}

// Submission reports whether an input event completed the code and, if so,
// what the checker answered.
type Submission struct {
	Submitted bool
	Result    CheckResult
	Err       error
}

// CodeInputAssembler turns per-digit input into one candidate code. Each
// transition to complete is submitted once; the same entry is not submitted
// again until a slot actually changes.
type CodeInputAssembler struct {
	checker CodeChecker

	mu       sync.Mutex
	slots    []byte
	focus    int
	armed    bool
	disabled bool
}

// NewCodeInputAssembler returns an empty assembler of length slots.
func NewCodeInputAssembler(length int, checker CodeChecker) *CodeInputAssembler {
	if length < 1 {
		length = 1
	}
	return &CodeInputAssembler{
		checker: checker,
		slots:   make([]byte, length),
		armed:   true,
	}
}

// Len is the number of slots.
func (a *CodeInputAssembler) Len() int {
	return len(a.slots)
}

// SetDigit stores s at index. Anything but a single ASCII digit, an index out
// of range, or a disabled assembler discards the event.
func (a *CodeInputAssembler) SetDigit(ctx context.Context, index int, s string) Submission {
	a.mu.Lock()
	if a.disabled || index < 0 || index >= len(a.slots) || len(s) != 1 || s[0] < '0' || s[0] > '9' {
		a.mu.Unlock()
		return Submission{}
	}

	if a.slots[index] != s[0] {
		a.slots[index] = s[0]
		a.armed = true
	}
	if index < len(a.slots)-1 {
		a.focus = index + 1
	} else {
		a.focus = index
	}
	return a.maybeSubmit(ctx)
}

// Paste keeps the digits of raw, truncated to the slot count, and writes them
// from slot 0. Slots past the pasted digits are emptied. Input with no digits
// is ignored.
func (a *CodeInputAssembler) Paste(ctx context.Context, raw string) Submission {
	var b strings.Builder
	for i := 0; i < len(raw) && b.Len() < len(a.slots); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			b.WriteByte(raw[i])
		}
	}
	digits := b.String()

	a.mu.Lock()
	if a.disabled || digits == "" {
		a.mu.Unlock()
		return Submission{}
	}

	for i := range a.slots {
		var next byte
		if i < len(digits) {
			next = digits[i]
		}
		if a.slots[i] != next {
			a.slots[i] = next
			a.armed = true
		}
	}
	a.focus = len(digits)
	if a.focus > len(a.slots)-1 {
		a.focus = len(a.slots) - 1
	}
	return a.maybeSubmit(ctx)
}

// BackspaceAt moves focus back from an empty slot, or clears a filled one.
func (a *CodeInputAssembler) BackspaceAt(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disabled || index < 0 || index >= len(a.slots) {
		return
	}
	if a.slots[index] == 0 {
		if index > 0 {
			a.focus = index - 1
		}
		return
	}
	a.slots[index] = 0
	a.armed = true
	a.focus = index
}

// IsComplete reports whether every slot holds a digit.
func (a *CodeInputAssembler) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completeLocked()
}

// Clear empties all slots, moves focus to 0 and re-arms submission.
func (a *CodeInputAssembler) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		a.slots[i] = 0
	}
	a.focus = 0
	a.armed = true
}

// Disable makes the assembler discard input until Enable.
func (a *CodeInputAssembler) Disable() {
	a.mu.Lock()
	a.disabled = true
	a.mu.Unlock()
}

func (a *CodeInputAssembler) Enable() {
	a.mu.Lock()
	a.disabled = false
	a.mu.Unlock()
}

func (a *CodeInputAssembler) Disabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disabled
}

// Focus is the slot the next typed digit is expected in.
func (a *CodeInputAssembler) Focus() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.focus
}

// Slots returns each slot's content; empty slots are "".
func (a *CodeInputAssembler) Slots() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.slots))
	for i, c := range a.slots {
		if c != 0 {
			out[i] = string(c)
		}
	}
	return out
}

func (a *CodeInputAssembler) completeLocked() bool {
	for _, c := range a.slots {
		if c == 0 {
			return false
		}
	}
	return true
}

// maybeSubmit releases a.mu before calling the checker.
func (a *CodeInputAssembler) maybeSubmit(ctx context.Context) Submission {
	if !a.armed || !a.completeLocked() || a.checker == nil {
		a.mu.Unlock()
		return Submission{}
	}
	a.armed = false
	candidate := string(a.slots)
	a.mu.Unlock()

	result, err := a.checker.Check(ctx, candidate)
	return Submission{Submitted: true, Result: result, Err: err}
}
