package handler

import (
	"errors"
	"testing"
)

func TestReasonClassCacheable(t *testing.T) {
	cases := []struct {
		class ReasonClass
		want  bool
	}{
		{ReasonPolicyDenied, false},
		{ReasonNotFound, true},
		{ReasonDecodeError, true},
		{ReasonTransientNetwork, false},
		{ReasonInternal, false},
	}
	for _, tc := range cases {
		if got := tc.class.Cacheable(); got != tc.want {
			t.Errorf("%v.Cacheable() = %v, want %v", tc.class, got, tc.want)
		}
	}
}

func TestEncodeDecodeFailureRoundTrip(t *testing.T) {
	for _, class := range []ReasonClass{ReasonNotFound, ReasonDecodeError} {
		data := encodeFailure(class)
		if got := decodeFailure(data); got != class {
			t.Errorf("decodeFailure(encodeFailure(%v)) = %v, want %v", class, got, class)
		}
	}
}

func TestDecodeFailureUnknownDataIsInternal(t *testing.T) {
	if got := decodeFailure([]byte("garbage")); got != ReasonInternal {
		t.Errorf("decodeFailure(garbage) = %v, want ReasonInternal", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := newError(ReasonInternal, inner)

	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to see through to the wrapped error")
	}

	var target *Error
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to recover *Error")
	}
	if target.Class != ReasonInternal {
		t.Fatalf("Class = %v, want ReasonInternal", target.Class)
	}
}
