package usecase

import "waiting-backend/internal/waiting/domain"

// MergeConversations dedupes records by id. Records from streams are
// last-write-wins but keep their first position; mentions only raise the
// IsMention flag on an existing record or are appended as new ones.
func MergeConversations(streams [][]domain.Conversation, mentions []domain.Conversation) []domain.Conversation {
	var merged []domain.Conversation
	index := make(map[string]int)

	for _, stream := range streams {
		for _, c := range stream {
			if i, ok := index[c.ID]; ok {
				c.IsMention = c.IsMention || merged[i].IsMention
				merged[i] = c
				continue
			}
			index[c.ID] = len(merged)
			merged = append(merged, c)
		}
	}

	for _, m := range mentions {
		if i, ok := index[m.ID]; ok {
			merged[i].IsMention = true
			continue
		}
		m.IsMention = true
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	return merged
}
