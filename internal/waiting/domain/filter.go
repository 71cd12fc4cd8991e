package domain

// WaitingFilter controls which sources are queried and what is visible
type WaitingFilter struct {
	MinStaleDurationHours  int            `json:"min_stale_duration_hours"`
	MaxResults             int            `json:"max_results"`
	IncludeEmail           bool           `json:"include_email"`
	IncludeTeamsChats      bool           `json:"include_teams_chats"`
	IncludeChannelMessages bool           `json:"include_channel_messages"`
	IncludeMentions        bool           `json:"include_mentions"`
	RelationshipFilter     []Relationship `json:"relationship_filter,omitempty"`
	HideSnoozed            bool           `json:"hide_snoozed"`
}

// DefaultWaitingFilter includes every source
func DefaultWaitingFilter() WaitingFilter {
	return WaitingFilter{
		MinStaleDurationHours:  24,
		MaxResults:             50,
		IncludeEmail:           true,
		IncludeTeamsChats:      true,
		IncludeChannelMessages: true,
		IncludeMentions:        true,
	}
}

// AllowsRelationship reports whether r passes the relationship filter (empty filter allows all)
func (f WaitingFilter) AllowsRelationship(r Relationship) bool {
	if len(f.RelationshipFilter) == 0 {
		return true
	}
	for _, allowed := range f.RelationshipFilter {
		if allowed == r {
			return true
		}
	}
	return false
}

// ResponseTimeSLA is a per-relationship maximum acceptable wait
type ResponseTimeSLA struct {
	Relationship Relationship `json:"relationship"`
	MaxHours     int          `json:"max_hours"`
}
