// Package scheduler defines the asynq background jobs: periodic risk
// refresh for active leads and cleanup of expired verification tokens.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskRiskRefresh recomputes the risk analysis of a single lead.
const TaskRiskRefresh = "leads.risk.refresh"

// TaskRiskRefreshScan enqueues a TaskRiskRefresh for every recently
// active lead. Scheduled nightly.
const TaskRiskRefreshScan = "leads.risk.refresh_scan"

// TaskVerificationCleanup deletes expired, unconsumed email verification
// tokens. Scheduled hourly.
const TaskVerificationCleanup = "leads.verifications.cleanup"

type RiskRefreshPayload struct {
	LeadID string `json:"leadId"`
}

func NewRiskRefreshTask(payload RiskRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRiskRefresh, data), nil
}

func ParseRiskRefreshPayload(task *asynq.Task) (RiskRefreshPayload, error) {
	var payload RiskRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RiskRefreshPayload{}, err
	}
	return payload, nil
}

func NewRiskRefreshScanTask() *asynq.Task {
	return asynq.NewTask(TaskRiskRefreshScan, nil)
}

func NewVerificationCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskVerificationCleanup, nil)
}
