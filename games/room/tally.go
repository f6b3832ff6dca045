/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// Tally counts how many players cast each distinct vote. Unset votes count
// like any other value.
func Tally(players []Player) map[string]int {
	counts := make(map[string]int, len(players))
	for _, p := range players {
		counts[p.Vote.Key()]++
	}

	return counts
}

// score awards one point to every player whose vote nobody else matched and
// clears all votes for the next round.
func score(players []Player, counts map[string]int) []Player {
	scored := make([]Player, len(players))
	for i, p := range players {
		if counts[p.Vote.Key()] == 1 {
			p.Score++
		}
		scored[i] = p.clearVote()
	}

	return scored
}
