package reputation

// threshold is the XP a user must exceed to hold a rank.
type threshold struct {
	above int64
	rank  Rank
}

// rankTable is ordered from the highest rank down.
var rankTable = []threshold{
	{above: 1000, rank: RankChampion},
	{above: 500, rank: RankGuardian},
	{above: 100, rank: RankVolunteer},
}

// RankForXP maps XP to a rank. Boundary values belong to the lower rank.
func RankForXP(xp int64) Rank {
	for _, t := range rankTable {
		if xp > t.above {
			return t.rank
		}
	}
	return RankCitizen
}
