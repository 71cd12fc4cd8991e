package domain

import "time"

// GroupStats are the aggregates shared by person and team groups
type GroupStats struct {
	TotalWaitHours int       `json:"total_wait_hours"`
	ItemCount      int       `json:"item_count"`
	MaxUrgency     int       `json:"max_urgency"`
	SnoozedCount   int       `json:"snoozed_count"`
	OldestItemDate time.Time `json:"oldest_item_date"`
}

// Add folds one conversation into the statistics
func (s *GroupStats) Add(c Conversation) {
	s.ItemCount++
	s.TotalWaitHours += c.StaleDurationHours
	if c.UrgencyScore > s.MaxUrgency {
		s.MaxUrgency = c.UrgencyScore
	}
	if c.SnoozedUntil != nil {
		s.SnoozedCount++
	}
	if s.OldestItemDate.IsZero() || c.ReceivedAt.Before(s.OldestItemDate) {
		s.OldestItemDate = c.ReceivedAt
	}
}

// PersonGroup holds every conversation with one counterpart
type PersonGroup struct {
	Person        Person         `json:"person"`
	Conversations []Conversation `json:"conversations"`
	GroupStats
}

// TeamGroup holds every conversation attributed to one joined team
type TeamGroup struct {
	Team          Team           `json:"team"`
	People        []Person       `json:"people"`
	Conversations []Conversation `json:"conversations"`
	GroupStats
}

// GroupedWaitingData is the result of one refresh cycle
type GroupedWaitingData struct {
	ByPerson           []PersonGroup  `json:"by_person"`
	ByTeam             []TeamGroup    `json:"by_team"`
	UngroupedByPerson  []PersonGroup  `json:"ungrouped_by_person"`
	AllConversations   []Conversation `json:"all_conversations"`
	TotalPeopleWaiting int            `json:"total_people_waiting"`
	TotalTeamsAffected int            `json:"total_teams_affected"`
	TotalItems         int            `json:"total_items"`
	TotalWaitHours     int            `json:"total_wait_hours"`
	CriticalCount      int            `json:"critical_count"`
	SnoozedCount       int            `json:"snoozed_count"`
}

// FindConversation looks up a conversation by id
func (d *GroupedWaitingData) FindConversation(id string) (Conversation, bool) {
	if d == nil {
		return Conversation{}, false
	}
	for _, c := range d.AllConversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}
