package rom

import (
	"slices"
	"strconv"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func nonNil[T any](v *T) *T {
	if v == nil {
		panic("nil")
	}
	return v
}

func formatPK(pk int64) string {
	return strconv.FormatInt(pk, 10)
}

// parsePKs converts set members to primary keys, sorted ascending.
func parsePKs(members []string) ([]int64, error) {
	pks := make([]int64, 0, len(members))
	for _, s := range members {
		pk, err := strconv.ParseInt(s, 10, 64)
		if err != nil || pk <= 0 {
			return nil, dataErrf([]byte(s), 0, err, "invalid primary key in set")
		}
		pks = append(pks, pk)
	}
	slices.Sort(pks)
	return pks, nil
}
