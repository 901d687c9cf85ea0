package estimation

import (
	"cmp"
	"slices"
)

// Placeholder is the vote given to participants that had not voted when
// votes were revealed or whose connection went stale.
const Placeholder = "?"

const (
	WaitingText  = "Waiting for votes..."
	UnknownText  = "?"
	ConflictText = "Conflicting votes!"
)

// Vote is one line of a room's user list. An empty Vote means "not voted".
type Vote struct {
	Username string `json:"username"`
	Vote     string `json:"vote,omitempty"`
	Observer bool   `json:"observer"`
	Healthy  bool   `json:"healthy"`
}

type ResultKind string

const (
	ResultWaiting  ResultKind = "waiting"
	ResultUnknown  ResultKind = "unknown"
	ResultConflict ResultKind = "conflict"
	ResultEstimate ResultKind = "estimate"
)

type Result struct {
	Kind             ResultKind `json:"kind"`
	Text             string     `json:"text"`
	ConflictingUsers []string   `json:"conflictingUsers,omitempty"`
}

// EveryoneVoted reports whether every non-observer has a vote. Observers
// never count, so a room made only of observers has everyone voted.
func EveryoneVoted(votes []Vote) bool {
	for _, v := range votes {
		if !v.Observer && v.Vote == "" {
			return false
		}
	}
	return true
}

type resolvedVote struct {
	vote    Vote
	option  Option
	ordinal int
	known   bool
}

// ComputeResult derives the room verdict from the current votes and the
// active template.
//
// A conflict between any two participant votes wins over everything else.
// Without conflicts the estimate is the highest-ordinal vote whose option
// declares conflicts at all, falling back to the highest-ordinal vote. Equal
// ordinals keep their input order and the later one wins. Votes that match no
// option are kept with ordinal -1; if one of them is picked the result is
// unknown.
func ComputeResult(votes []Vote, t Template) Result {
	if !EveryoneVoted(votes) {
		return Result{Kind: ResultWaiting, Text: WaitingText}
	}

	resolved := make([]resolvedVote, 0, len(votes))
	for _, v := range votes {
		if v.Observer {
			continue
		}
		option, ordinal, ok := t.Lookup(v.Vote)
		resolved = append(resolved, resolvedVote{vote: v, option: option, ordinal: ordinal, known: ok})
	}
	if len(resolved) == 0 {
		return Result{Kind: ResultUnknown, Text: UnknownText}
	}

	if users := conflictingUsers(resolved); len(users) > 0 {
		return Result{Kind: ResultConflict, Text: ConflictText, ConflictingUsers: users}
	}

	sorted := slices.Clone(resolved)
	slices.SortStableFunc(sorted, func(a, b resolvedVote) int {
		return cmp.Compare(a.ordinal, b.ordinal)
	})

	winner := sorted[len(sorted)-1]
	for i := len(sorted) - 1; i >= 0; i-- {
		if len(sorted[i].option.Conflicting) > 0 {
			winner = sorted[i]
			break
		}
	}

	if !winner.known {
		return Result{Kind: ResultUnknown, Text: UnknownText}
	}
	return Result{Kind: ResultEstimate, Text: winner.vote.Vote}
}

// conflictingUsers lists, in input order, the participants whose vote
// conflicts with some other participant's vote.
func conflictingUsers(resolved []resolvedVote) []string {
	var users []string
	for i, r := range resolved {
		if !r.known {
			continue
		}
		for j, other := range resolved {
			if i != j && slices.Contains(r.option.Conflicting, other.vote.Vote) {
				users = append(users, r.vote.Username)
				break
			}
		}
	}
	return users
}
