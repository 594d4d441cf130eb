package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecoverConvertsPanic(t *testing.T) {
	grow := func() (err error) {
		defer Recover(&err, "TreeGrower.Grow")
		panic("histogram index out of range")
	}

	err := grow()
	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if panicErr.Operation != "TreeGrower.Grow" {
		t.Errorf("Operation = %q, want %q", panicErr.Operation, "TreeGrower.Grow")
	}
	if panicErr.PanicValue != "histogram index out of range" {
		t.Errorf("PanicValue = %v, want the panic argument", panicErr.PanicValue)
	}
	if panicErr.StackTrace == "" {
		t.Error("StackTrace should be captured at recovery time")
	}
	if got, want := panicErr.Error(), "panic in TreeGrower.Grow: histogram index out of range"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRecoverNoPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "BinMapper.FitTransform")
		return nil
	}
	if err := fit(); err != nil {
		t.Fatalf("Recover should stay silent without a panic, got %v", err)
	}
}

func TestRecoverKeepsExistingError(t *testing.T) {
	originalErr := fmt.Errorf("empty feature column")

	fit := func() (err error) {
		defer Recover(&err, "BinMapper.FitTransform")
		err = originalErr
		panic("panic after validation")
	}

	err := fit()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "panic in BinMapper.FitTransform") {
		t.Errorf("message should name the operation, got %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("the pre-panic error should survive as the wrapped cause")
	}
}

func TestSafeExecuteSuccess(t *testing.T) {
	if err := SafeExecute("tree rendering", func() error { return nil }); err != nil {
		t.Fatalf("SafeExecute = %v, want nil", err)
	}
}

func TestSafeExecutePassesThroughError(t *testing.T) {
	renderErr := fmt.Errorf("render failed")
	if err := SafeExecute("tree rendering", func() error { return renderErr }); err != renderErr {
		t.Fatalf("SafeExecute = %v, want the function's own error", err)
	}
}

func TestSafeExecutePanic(t *testing.T) {
	err := SafeExecute("tree rendering", func() error {
		panic("nil node in tree graph")
	})
	if err == nil {
		t.Fatal("expected an error from the panicking function")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if panicErr.PanicValue != "nil node in tree graph" {
		t.Errorf("PanicValue = %v, want the panic argument", panicErr.PanicValue)
	}
}

func TestPanicErrorString(t *testing.T) {
	panicErr := NewPanicError("TreePredictor.Predict", "node index -1")

	if got, want := panicErr.Error(), "panic in TreePredictor.Predict: node index -1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	str := panicErr.String()
	if !strings.Contains(str, "Stack trace:") || !strings.Contains(str, "node index -1") {
		t.Errorf("String() should carry the message and the stack, got %q", str)
	}
}

// Go turns panic(nil) into a *runtime.PanicNilError, so the nil case is
// matched by substring rather than by value.
func TestRecoverPanicValues(t *testing.T) {
	tests := []struct {
		name       string
		panicValue interface{}
		wantText   string
	}{
		{"string", "split on empty histogram", "split on empty histogram"},
		{"int", 42, "42"},
		{"error", fmt.Errorf("gradient overflow"), "gradient overflow"},
		{"nil", nil, "panic called with nil argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := func() (err error) {
				defer Recover(&err, "TreeGrower.Grow")
				panic(tt.panicValue)
			}

			err := fn()
			if err == nil {
				t.Fatal("expected an error from the panic")
			}
			var panicErr *PanicError
			if !errors.As(err, &panicErr) {
				t.Fatalf("expected *PanicError, got %T", err)
			}
			if got := fmt.Sprintf("%v", panicErr.PanicValue); !strings.Contains(got, tt.wantText) {
				t.Errorf("PanicValue = %q, want it to mention %q", got, tt.wantText)
			}
		})
	}
}

func BenchmarkRecoverNoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		func() (err error) {
			defer Recover(&err, "TreeGrower.Grow")
			return nil
		}()
	}
}
