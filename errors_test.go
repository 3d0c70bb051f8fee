package rom

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
		wantErr[*DataError](t, err)
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2)") {
			t.Fatalf("err.Error() = %q, wanted message with oops/inner/(2)", s)
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		s := dataErrf(data, 0, nil, "oops").Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})
}

func TestModelError(t *testing.T) {
	deepEqual(t, modelErrf("users", "email", "duplicate field").Error(), "model users.email: duplicate field")
	deepEqual(t, modelErrf("", "", "missing namespace").Error(), "model <unnamed>: missing namespace")
}

func TestInputError(t *testing.T) {
	inner := errors.New("inner")
	err := &InputError{Namespace: "users", Field: "age", Value: "x", Msg: "expected an integer", Err: inner}
	deepEqual(t, err.Error(), `users.age: expected an integer (string x): inner`)
	if !errors.Is(err, inner) {
		t.Errorf("errors.Is(err, inner) = false")
	}
	deepEqual(t, (&InputError{Msg: "bad"}).Error(), "bad")
}

func TestRecordError(t *testing.T) {
	err := &RecordError{Namespace: "users", PK: 5, Err: ErrNotFound}
	deepEqual(t, err.Error(), "users/5: record not found")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false")
	}
	err = &RecordError{Namespace: "users", PK: 5, Field: "age", Err: errors.New("bad")}
	deepEqual(t, err.Error(), "users/5.age: bad")
	if IsNotFound(err) {
		t.Errorf("IsNotFound = true")
	}
}
