package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankForXP(t *testing.T) {
	tests := []struct {
		xp   int64
		want Rank
	}{
		{0, RankCitizen},
		{100, RankCitizen},
		{101, RankVolunteer},
		{500, RankVolunteer},
		{501, RankGuardian},
		{1000, RankGuardian},
		{1001, RankChampion},
		{1 << 40, RankChampion},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RankForXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestRankForXP_Monotonic(t *testing.T) {
	order := map[Rank]int{RankCitizen: 0, RankVolunteer: 1, RankGuardian: 2, RankChampion: 3}

	prev := order[RankForXP(0)]
	for xp := int64(1); xp <= 1500; xp++ {
		cur := order[RankForXP(xp)]
		assert.GreaterOrEqual(t, cur, prev, "rank dropped at xp=%d", xp)
		prev = cur
	}
}

func TestRankArgs_Ascending(t *testing.T) {
	assert.Equal(t, []interface{}{
		"Citizen",
		"100", "Volunteer",
		"500", "Guardian",
		"1000", "Champion",
	}, rankArgs())
}
