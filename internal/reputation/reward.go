package reputation

import (
	"context"

	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

// Awarder is the part of the Ledger a reward policy needs.
type Awarder interface {
	AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string, reportRef *uuid.UUID) (*AwardResult, error)
}

type reward struct {
	xp     int
	reason string
}

// RewardPolicy decides how much XP a stored report earns its submitter.
// Statuses without a configured amount earn nothing.
type RewardPolicy struct {
	ledger   Awarder
	byStatus map[string]reward
}

// NewRewardPolicy awards verifiedXP for verified reports and pendingXP for
// reports awaiting review. Zero disables the award for that status.
func NewRewardPolicy(ledger Awarder, verifiedXP, pendingXP int) *RewardPolicy {
	p := &RewardPolicy{ledger: ledger, byStatus: make(map[string]reward)}
	if verifiedXP > 0 {
		p.byStatus["verified"] = reward{xp: verifiedXP, reason: ReasonReportVerified}
	}
	if pendingXP > 0 {
		p.byStatus["review_pending"] = reward{xp: pendingXP, reason: ReasonReportSubmitted}
	}
	return p
}

// Enabled reports whether any status earns XP.
func (p *RewardPolicy) Enabled() bool {
	return len(p.byStatus) > 0
}

// Reward awards XP for a report in the given status.
func (p *RewardPolicy) Reward(ctx context.Context, userID, reportID uuid.UUID, status string) error {
	r, ok := p.byStatus[status]
	if !ok {
		logger.WithContext(ctx).Debug("no reward for report status",
			zap.String("report_id", reportID.String()), zap.String("status", status))
		return nil
	}

	ref := reportID
	_, err := p.ledger.AwardXP(ctx, userID, r.xp, r.reason, &ref)
	return err
}
