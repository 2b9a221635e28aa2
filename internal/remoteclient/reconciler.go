// Package remoteclient's reconciler implements the diff_states algorithm:
// given a cached StateSnapshot and a freshly fetched one, compute which
// terminal ids were added/removed and which projects changed, so the
// caller can issue the matching subscribe/unsubscribe calls and
// holder create/drop without re-deriving this from scratch.
package remoteclient

import "github.com/okena/remoted/internal/remoteproto"

// Diff is the result of comparing two StateSnapshots.
type Diff struct {
	Added          []string // terminal ids present in next but not cached
	Removed        []string // terminal ids present in cached but not next
	ChangedProjects []string // project ids whose layout differs or are new
}

// DiffStates computes the reconciliation delta between a cached snapshot
// and a freshly fetched one. Terminal membership is the union of every
// non-null Terminal-node id anywhere in any project's layout tree. A
// project counts as changed if it is newly present or its layout's
// serialized form differs from the cached one.
func DiffStates(cached, next remoteproto.StateSnapshot) Diff {
	cachedIDs := terminalIDSet(cached)
	nextIDs := terminalIDSet(next)

	var diff Diff
	for id := range nextIDs {
		if !cachedIDs[id] {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range cachedIDs {
		if !nextIDs[id] {
			diff.Removed = append(diff.Removed, id)
		}
	}

	cachedProjects := make(map[string]string, len(cached.Projects)) // id -> serialized layout
	for _, p := range cached.Projects {
		cachedProjects[p.ID] = p.Layout.Serialized()
	}
	for _, p := range next.Projects {
		serialized := p.Layout.Serialized()
		prior, existed := cachedProjects[p.ID]
		if !existed || prior != serialized {
			diff.ChangedProjects = append(diff.ChangedProjects, p.ID)
		}
	}

	return diff
}

func terminalIDSet(snap remoteproto.StateSnapshot) map[string]bool {
	ids := make(map[string]bool)
	for _, p := range snap.Projects {
		if p.Layout == nil {
			continue
		}
		for _, id := range p.Layout.TerminalIDs() {
			ids[id] = true
		}
	}
	return ids
}
