package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageRecord is an immutable append-only metering entry. Exactly one record
// is written per billable completion attempt, including failed ones that
// still charged prompt tokens.
type UsageRecord struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID        snowflake.ID `gorm:"not null;index:idx_usage_account_created,priority:1" json:"account_id"`
	Model            string       `gorm:"not null" json:"model"`
	TaskType         string       `gorm:"not null" json:"task_type"`
	PromptTokens     int          `gorm:"not null" json:"prompt_tokens"`
	CompletionTokens int          `gorm:"not null" json:"completion_tokens"`
	TotalTokens      int          `gorm:"not null" json:"total_tokens"`
	CostTokens       int64        `gorm:"not null" json:"cost_tokens"`
	CreatedAt        time.Time    `gorm:"not null;index:idx_usage_account_created,priority:2" json:"created_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }

const TaskTypeChat = "chat"
