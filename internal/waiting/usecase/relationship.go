package usecase

import "waiting-backend/internal/waiting/domain"

// ClassifyRelationship applies the priority chain
// manager > direct-report > frequent > external > other
func ClassifyRelationship(sender domain.Person, rc domain.RelationshipContext, orgDomain string) domain.Relationship {
	if sender.ID != "" {
		if rc.Manager != nil && rc.Manager.ID == sender.ID {
			return domain.RelationshipManager
		}
		if _, ok := rc.DirectReportIDs[sender.ID]; ok {
			return domain.RelationshipDirectReport
		}
		if _, ok := rc.CollaboratorIDs[sender.ID]; ok {
			return domain.RelationshipFrequent
		}
	}
	if d := domain.EmailDomain(sender.Email); d != "" && orgDomain != "" && d != orgDomain {
		return domain.RelationshipExternal
	}
	return domain.RelationshipOther
}
