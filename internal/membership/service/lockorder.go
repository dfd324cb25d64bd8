package service

import (
	"sort"

	"github.com/google/uuid"
)

// lockOrder dedupes ids and returns them in the one global lock acquisition
// order: ascending by canonical UUID text, which matches byte order and the
// ORDER BY the stores use.
//
// Every writer must lock plan rows before membership rows, and each set
// through this helper, never through ad hoc sorting at the call site. Two
// concurrent mutations touching overlapping rows then serialize on whichever
// acquires the shared lock first instead of deadlocking.
func lockOrder(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
