package assignment

import (
	"bytes"

	"github.com/google/uuid"
)

// Candidate is an eligible worker together with their current load.
type Candidate struct {
	WorkerID    uuid.UUID
	ActiveTasks int
}

// SelectLeastLoaded picks the candidate with the fewest active tasks among
// those below ceiling. Ties go to the lowest worker ID, so the choice only
// depends on the candidate set, not on its order. The boolean is false when
// nobody has capacity.
func SelectLeastLoaded(candidates []Candidate, ceiling int) (uuid.UUID, bool) {
	var (
		best  Candidate
		found bool
	)

	for _, c := range candidates {
		if c.ActiveTasks >= ceiling {
			continue
		}
		if !found || less(c, best) {
			best = c
			found = true
		}
	}

	if !found {
		return uuid.Nil, false
	}
	return best.WorkerID, true
}

func less(a, b Candidate) bool {
	if a.ActiveTasks != b.ActiveTasks {
		return a.ActiveTasks < b.ActiveTasks
	}
	return bytes.Compare(a.WorkerID[:], b.WorkerID[:]) < 0
}
