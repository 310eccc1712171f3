package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// NotificationStatus tracks delivery of a notification record.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// NotificationRecord is the audit trail of one dispatch. A record created
// externally in pending state doubles as a delivery intent.
type NotificationRecord struct {
	BaseModel

	Type    string `gorm:"type:varchar(64);index" json:"type"`
	MatchID string `gorm:"column:match_id;type:varchar(64);index" json:"matchId,omitempty"`
	UserID  string `gorm:"column:user_id;type:varchar(64)" json:"userId,omitempty"`

	Token  string                      `gorm:"type:text" json:"token,omitempty"`
	Tokens datatypes.JSONSlice[string] `json:"tokens,omitempty"`

	Title string         `gorm:"type:varchar(255)" json:"title"`
	Body  string         `gorm:"type:text" json:"body"`
	Data  datatypes.JSON `json:"data,omitempty"`

	Status       NotificationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Error        string             `gorm:"type:text" json:"error,omitempty"`
	SuccessCount int                `json:"successCount"`
	FailureCount int                `json:"failureCount"`
	SentAt       *time.Time         `json:"sentAt,omitempty"`
}

// TableName keeps the collection name used by the app.
func (NotificationRecord) TableName() string {
	return "notifications"
}

// DataMap decodes the structured payload. Non-string values are dropped.
func (n *NotificationRecord) DataMap() map[string]string {
	if len(n.Data) == 0 {
		return map[string]string{}
	}
	var raw map[string]any
	if err := json.Unmarshal(n.Data, &raw); err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// SetData encodes the structured payload.
func (n *NotificationRecord) SetData(data map[string]string) error {
	if len(data) == 0 {
		n.Data = nil
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.Data = datatypes.JSON(encoded)
	return nil
}

// Multicast reports whether the record targets a token set.
func (n *NotificationRecord) Multicast() bool {
	return n.Token == "" && len(n.Tokens) > 0
}
