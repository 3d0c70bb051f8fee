package rom

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func wantErr[E error](t testing.TB, err error) E {
	t.Helper()
	var e E
	if !errors.As(err, &e) {
		t.Fatalf("** got error %v (%T), wanted %T", err, err, e)
	}
	return e
}

func TestParsePKs(t *testing.T) {
	deepEqual(t, must(parsePKs([]string{"10", "2", "1"})), []int64{1, 2, 10})
	deepEqual(t, must(parsePKs(nil)), []int64{})

	for _, bad := range []string{"", "x", "0", "-3"} {
		_, err := parsePKs([]string{"1", bad})
		wantErr[*DataError](t, err)
	}
}

func TestCompareNumeric(t *testing.T) {
	a := []string{"10", "9", "=b", "100", "=a", "1"}
	slices.SortFunc(a, compareNumeric)
	deepEqual(t, a, []string{"1", "9", "10", "100", "=a", "=b"})
}
