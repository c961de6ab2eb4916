package domain

import (
	"fmt"
	"slices"
)

// Policy selects how a remote batch is combined with the local quote list.
type Policy string

const (
	// PolicyIdentityMerge overwrites local records whose identity matches a
	// remote record and appends remote records that are not present.
	PolicyIdentityMerge Policy = "identity-merge"

	// PolicyServerReplace replaces the local list with the remote batch.
	PolicyServerReplace Policy = "server-replace"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyIdentityMerge

// ParsePolicy converts a configured policy name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(name); p {
	case PolicyIdentityMerge, PolicyServerReplace:
		return p, nil
	case "":
		return DefaultPolicy, nil
	default:
		return "", NewValidationErrorWithValue("policy",
			fmt.Sprintf("unknown reconciliation policy %q", name), name)
	}
}

// ReconcileResult is the outcome of a single reconciliation pass.
type ReconcileResult struct {
	// Quotes is the reconciled list. It never aliases the local input.
	Quotes []Quote

	// Added counts remote records that were not present locally.
	Added int

	// Updated counts local records whose value was overwritten by a
	// remote record carrying different data.
	Updated int

	// Replaced is set when server-replace produced a list different from
	// the local one.
	Replaced bool
}

// Changed reports whether the reconciled list differs from the local one.
func (r ReconcileResult) Changed() bool {
	return r.Added > 0 || r.Updated > 0 || r.Replaced
}

// Reconcile combines the local list with a remote batch under policy.
// It is pure: neither input is modified. An empty remote batch never changes
// the local list, whatever the policy.
func Reconcile(local, remote []Quote, policy Policy) ReconcileResult {
	if len(remote) == 0 {
		return ReconcileResult{Quotes: slices.Clone(local)}
	}

	if policy == PolicyServerReplace {
		return replaceWithRemote(local, remote)
	}

	return mergeByIdentity(local, remote)
}

func mergeByIdentity(local, remote []Quote) ReconcileResult {
	out := slices.Clone(local)

	index := make(map[string]int, len(out)+len(remote))
	for i, q := range out {
		index[q.Key()] = i
	}

	var res ReconcileResult
	for _, r := range remote {
		key := r.Key()

		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r)
			res.Added++
			continue
		}

		out[i] = r
	}

	// Updates are counted against the input, not per remote record.
	for i := range local {
		if out[i] != local[i] {
			res.Updated++
		}
	}

	res.Quotes = out

	return res
}

func replaceWithRemote(local, remote []Quote) ReconcileResult {
	out := UniqueByIdentity(remote)

	return ReconcileResult{
		Quotes:   out,
		Replaced: !slices.Equal(local, out),
	}
}

// UniqueByIdentity returns a copy of quotes holding one record per Key.
// A repeated identity keeps the position of its first occurrence and the
// value of its last.
func UniqueByIdentity(quotes []Quote) []Quote {
	out := make([]Quote, 0, len(quotes))

	index := make(map[string]int, len(quotes))
	for _, q := range quotes {
		key := q.Key()
		if i, ok := index[key]; ok {
			out[i] = q
			continue
		}

		index[key] = len(out)
		out = append(out, q)
	}

	return out
}
