package usecase

import (
	"fmt"

	"waiting-backend/internal/waiting/domain"
)

// ScoreUrgency scores a conversation from a base of 5, capped at 10.
// Factors are returned in application order: wait time, relationship, content, SLA.
func ScoreUrgency(c domain.Conversation, slas []domain.ResponseTimeSLA) (int, []domain.UrgencyFactor) {
	score := domain.BaseUrgency
	factors := make([]domain.UrgencyFactor, 0, 4)
	add := func(tag string, points int, description string) {
		score += points
		factors = append(factors, domain.UrgencyFactor{Factor: tag, Points: points, Description: description})
	}

	switch hours := c.StaleDurationHours; {
	case hours > 168:
		add(domain.FactorWaitTimeExtreme, 3, "Waiting over 1 week")
	case hours > 72:
		add(domain.FactorWaitTimeHigh, 2, "Waiting over 3 days")
	case hours > 48:
		add(domain.FactorWaitTimeMedium, 1, "Waiting over 2 days")
	}

	switch c.Sender.Relationship {
	case domain.RelationshipManager:
		add(domain.FactorSenderManager, 2, "From your manager")
	case domain.RelationshipDirectReport:
		add(domain.FactorSenderDirectReport, 1, "From a direct report")
	case domain.RelationshipFrequent:
		add(domain.FactorSenderFrequent, 1, "From a frequent collaborator")
	case domain.RelationshipExternal:
		add(domain.FactorSenderExternal, 1, "From an external contact")
	}

	if c.IsQuestion {
		add(domain.FactorContentQuestion, 1, "Contains a question")
	}
	if c.HasDeadlineMention {
		add(domain.FactorContentDeadline, 2, "Mentions a deadline")
	}
	if c.IsMention {
		add(domain.FactorContentMention, 2, "You were @mentioned")
	}

	for _, sla := range slas {
		if sla.Relationship != c.Sender.Relationship || sla.MaxHours <= 0 {
			continue
		}
		if c.StaleDurationHours > sla.MaxHours {
			add(domain.FactorSLABreach, 2, fmt.Sprintf("Exceeds %dh response target for %s", sla.MaxHours, sla.Relationship))
		}
		break
	}

	return min(score, domain.MaxUrgency), factors
}

// UrgencyLevel buckets a score for display and notifications
func UrgencyLevel(score int) string {
	switch {
	case score >= domain.CriticalUrgency:
		return "critical"
	case score >= domain.HighUrgency:
		return "high"
	default:
		return "normal"
	}
}
