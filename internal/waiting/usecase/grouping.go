package usecase

import (
	"sort"

	"waiting-backend/internal/waiting/domain"
)

// GroupByPerson groups conversations by sender key. Groups are sorted.
func GroupByPerson(conversations []domain.Conversation) []domain.PersonGroup {
	var groups []domain.PersonGroup
	index := make(map[string]int)

	for _, c := range conversations {
		key := c.Sender.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.PersonGroup{Person: c.Sender})
		}
		groups[i].Conversations = append(groups[i].Conversations, c)
		groups[i].Add(c)
	}

	SortPersonGroups(groups)
	return groups
}

// GroupByTeam groups conversations whose TeamID is a joined team. Groups are sorted.
func GroupByTeam(conversations []domain.Conversation, rc domain.RelationshipContext) []domain.TeamGroup {
	var groups []domain.TeamGroup
	index := make(map[string]int)
	people := make(map[string]map[string]struct{})

	for _, c := range conversations {
		if c.TeamID == "" {
			continue
		}
		team, ok := rc.Team(c.TeamID)
		if !ok {
			continue
		}
		i, ok := index[team.ID]
		if !ok {
			i = len(groups)
			index[team.ID] = i
			people[team.ID] = make(map[string]struct{})
			groups = append(groups, domain.TeamGroup{Team: team})
		}
		g := &groups[i]
		g.Conversations = append(g.Conversations, c)
		g.Add(c)
		if key := c.Sender.Key(); key != "" {
			if _, seen := people[team.ID][key]; !seen {
				people[team.ID][key] = struct{}{}
				g.People = append(g.People, c.Sender)
			}
		}
	}

	SortTeamGroups(groups)
	return groups
}

// UngroupedByPerson strips team-claimed conversations from person groups,
// drops emptied groups and recomputes statistics. Input groups are not modified.
func UngroupedByPerson(groups []domain.PersonGroup, teams []domain.TeamGroup) []domain.PersonGroup {
	claimed := make(map[string]struct{})
	for _, t := range teams {
		for _, c := range t.Conversations {
			claimed[c.ID] = struct{}{}
		}
	}

	var out []domain.PersonGroup
	for _, g := range groups {
		rest := domain.PersonGroup{Person: g.Person}
		for _, c := range g.Conversations {
			if _, ok := claimed[c.ID]; ok {
				continue
			}
			rest.Conversations = append(rest.Conversations, c)
			rest.Add(c)
		}
		if len(rest.Conversations) > 0 {
			out = append(out, rest)
		}
	}

	SortPersonGroups(out)
	return out
}

func relationshipRank(r domain.Relationship) int {
	switch r {
	case domain.RelationshipManager:
		return 0
	case domain.RelationshipDirectReport:
		return 1
	default:
		return 2
	}
}

// SortPersonGroups puts the manager first, then direct reports, then the rest.
// Within each tier groups are ordered by max urgency and total wait, descending.
func SortPersonGroups(groups []domain.PersonGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		ra, rb := relationshipRank(a.Person.Relationship), relationshipRank(b.Person.Relationship)
		if ra != rb {
			return ra < rb
		}
		if a.MaxUrgency != b.MaxUrgency {
			return a.MaxUrgency > b.MaxUrgency
		}
		return a.TotalWaitHours > b.TotalWaitHours
	})
}

// SortTeamGroups orders by max urgency, distinct people, then total wait, descending
func SortTeamGroups(groups []domain.TeamGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.MaxUrgency != b.MaxUrgency {
			return a.MaxUrgency > b.MaxUrgency
		}
		if len(a.People) != len(b.People) {
			return len(a.People) > len(b.People)
		}
		return a.TotalWaitHours > b.TotalWaitHours
	})
}

// BuildGroupedData groups an already scored, filtered and sorted list
func BuildGroupedData(conversations []domain.Conversation, rc domain.RelationshipContext) *domain.GroupedWaitingData {
	byPerson := GroupByPerson(conversations)
	byTeam := GroupByTeam(conversations, rc)

	data := &domain.GroupedWaitingData{
		ByPerson:           byPerson,
		ByTeam:             byTeam,
		UngroupedByPerson:  UngroupedByPerson(byPerson, byTeam),
		AllConversations:   conversations,
		TotalPeopleWaiting: len(byPerson),
		TotalTeamsAffected: len(byTeam),
		TotalItems:         len(conversations),
	}
	if data.AllConversations == nil {
		data.AllConversations = []domain.Conversation{}
	}
	for _, c := range conversations {
		data.TotalWaitHours += c.StaleDurationHours
		if c.UrgencyScore >= domain.CriticalUrgency {
			data.CriticalCount++
		}
		if c.SnoozedUntil != nil {
			data.SnoozedCount++
		}
	}
	return data
}
