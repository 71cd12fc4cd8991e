package domain

import "time"

// DismissTTL is how long a dismissal suppresses a conversation
const DismissTTL = 24 * time.Hour

// DismissedItem suppresses a conversation until ExpiresAt
type DismissedItem struct {
	ConversationID string    `json:"conversation_id"`
	DismissedAt    time.Time `json:"dismissed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// SnoozedItem hides or marks a conversation until SnoozedUntil
type SnoozedItem struct {
	ConversationID string    `json:"conversation_id"`
	SnoozedAt      time.Time `json:"snoozed_at"`
	SnoozedUntil   time.Time `json:"snoozed_until"`
	Reason         string    `json:"reason,omitempty"`
}

// PersistedState is the serializable dismiss/snooze record set
type PersistedState struct {
	Dismissed   []DismissedItem `json:"dismissed"`
	Snoozed     []SnoozedItem   `json:"snoozed"`
	LastCleanup time.Time       `json:"last_cleanup"`
}

// EmptyState is the fallback used for a missing or corrupt blob
func EmptyState() PersistedState {
	return PersistedState{
		Dismissed: []DismissedItem{},
		Snoozed:   []SnoozedItem{},
	}
}

// StateBlob stores one serialized state string under a fixed key
type StateBlob struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"uniqueIndex;not null"`
	Value     string    `json:"value" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StateBlob) TableName() string {
	return "waiting_state_blobs"
}

// DeviceToken is a push notification registration
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DeviceToken) TableName() string {
	return "waiting_device_tokens"
}
