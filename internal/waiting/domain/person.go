package domain

import "strings"

// Relationship describes how a sender relates to the current user
type Relationship string

const (
	RelationshipManager      Relationship = "manager"
	RelationshipDirectReport Relationship = "direct-report"
	RelationshipFrequent     Relationship = "frequent"
	RelationshipExternal     Relationship = "external"
	RelationshipSameTeam     Relationship = "same-team"
	RelationshipOther        Relationship = "other"
)

// ParseRelationship maps a string to a known Relationship
func ParseRelationship(s string) (Relationship, bool) {
	switch r := Relationship(strings.ToLower(strings.TrimSpace(s))); r {
	case RelationshipManager, RelationshipDirectReport, RelationshipFrequent,
		RelationshipExternal, RelationshipSameTeam, RelationshipOther:
		return r, true
	}
	return "", false
}

// Person is a conversation counterpart. ID is empty while the sender is unresolved.
type Person struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	Relationship Relationship `json:"relationship"`
	PhotoURL     string       `json:"photo_url,omitempty"`
}

// Key returns the grouping identity: id, else email, else display name
func (p Person) Key() string {
	if p.ID != "" {
		return p.ID
	}
	if p.Email != "" {
		return p.Email
	}
	return p.DisplayName
}

// Team is a team the current user has joined
type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	WebURL      string `json:"web_url"`
	Type        string `json:"type"`
}

// CurrentUser is the signed-in knowledge worker
type CurrentUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Domain returns the organization domain of the user's email (substring after '@')
func (u CurrentUser) Domain() string {
	return EmailDomain(u.Email)
}

// EmailDomain returns the lower-cased part after '@', or "" if there is none
func EmailDomain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[idx+1:])
}

// RelationshipContext is the organizational snapshot used for classification
type RelationshipContext struct {
	Manager         *Person
	DirectReportIDs map[string]struct{}
	CollaboratorIDs map[string]struct{}
	Teams           []Team
}

// HasTeam reports whether the user has joined the team with the given id
func (rc RelationshipContext) HasTeam(teamID string) bool {
	for _, t := range rc.Teams {
		if t.ID == teamID {
			return true
		}
	}
	return false
}

// Team looks up a joined team by id
func (rc RelationshipContext) Team(teamID string) (Team, bool) {
	for _, t := range rc.Teams {
		if t.ID == teamID {
			return t, true
		}
	}
	return Team{}, false
}

// IDSet builds a membership set from people's ids, skipping empty ones
func IDSet(people []Person) map[string]struct{} {
	set := make(map[string]struct{}, len(people))
	for _, p := range people {
		if p.ID != "" {
			set[p.ID] = struct{}{}
		}
	}
	return set
}
