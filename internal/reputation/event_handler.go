package reputation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richxcame/civic-reports/pkg/eventbus"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

// EventHandler applies the reward policy to report events from the bus.
type EventHandler struct {
	policy *RewardPolicy
}

// NewEventHandler creates an event handler backed by the reward policy.
func NewEventHandler(policy *RewardPolicy) *EventHandler {
	return &EventHandler{policy: policy}
}

// RegisterSubscriptions subscribes to submitted reports on the bus.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectReportSubmitted, "reputation-rewards", h.HandleEvent); err != nil {
		return fmt.Errorf("subscribe to report events: %w", err)
	}
	logger.Info("reputation: subscribed to report events")
	return nil
}

// HandleEvent processes one event.
func (h *EventHandler) HandleEvent(ctx context.Context, event *eventbus.Event) error {
	if event.Type != eventbus.TypeReportSubmitted {
		logger.Debug("reputation: ignoring unknown event type", zap.String("type", event.Type))
		return nil
	}

	var data eventbus.ReportSubmittedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal report submitted: %w", err)
	}
	if data.SubmitterID == nil {
		return nil
	}

	return h.policy.Reward(ctx, *data.SubmitterID, data.ReportID, data.Status)
}
