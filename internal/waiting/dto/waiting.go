package dto

import (
	"fmt"
	"time"

	"waiting-backend/internal/waiting/domain"
)

// MaxResultsLimit caps the per-source result count a caller may request
const MaxResultsLimit = 500

// WaitingQuery is the query string of GET /waiting. Absent fields keep the defaults.
type WaitingQuery struct {
	MinStaleHours   *int     `form:"minStaleHours"`
	MaxResults      *int     `form:"maxResults"`
	IncludeEmail    *bool    `form:"includeEmail"`
	IncludeChats    *bool    `form:"includeChats"`
	IncludeChannels *bool    `form:"includeChannels"`
	IncludeMentions *bool    `form:"includeMentions"`
	Relationship    []string `form:"relationship"`
	HideSnoozed     *bool    `form:"hideSnoozed"`
}

// ToFilter overlays the query on defaults
func (q WaitingQuery) ToFilter(defaults domain.WaitingFilter) (domain.WaitingFilter, error) {
	f := defaults
	if q.MinStaleHours != nil {
		if *q.MinStaleHours < 0 {
			return f, fmt.Errorf("minStaleHours must not be negative")
		}
		f.MinStaleDurationHours = *q.MinStaleHours
	}
	if q.MaxResults != nil {
		if *q.MaxResults < 1 || *q.MaxResults > MaxResultsLimit {
			return f, fmt.Errorf("maxResults must be between 1 and %d", MaxResultsLimit)
		}
		f.MaxResults = *q.MaxResults
	}
	setBool(&f.IncludeEmail, q.IncludeEmail)
	setBool(&f.IncludeTeamsChats, q.IncludeChats)
	setBool(&f.IncludeChannelMessages, q.IncludeChannels)
	setBool(&f.IncludeMentions, q.IncludeMentions)
	setBool(&f.HideSnoozed, q.HideSnoozed)

	if len(q.Relationship) > 0 {
		f.RelationshipFilter = make([]domain.Relationship, 0, len(q.Relationship))
		for _, raw := range q.Relationship {
			r, ok := domain.ParseRelationship(raw)
			if !ok {
				return f, fmt.Errorf("unknown relationship %q", raw)
			}
			f.RelationshipFilter = append(f.RelationshipFilter, r)
		}
	}
	return f, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

type SnapshotResponse struct {
	Data        *domain.GroupedWaitingData `json:"data"`
	RefreshedAt time.Time                  `json:"refreshed_at"`
}

type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.Conversation `json:"results"`
	Total   int                   `json:"total"`
}

type SnoozeRequest struct {
	Until  time.Time `json:"until" binding:"required"`
	Reason string    `json:"reason"`
}

type RegisterDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// WaitingSettings are the runtime-adjustable settings
type WaitingSettings struct {
	SLATargets            []domain.ResponseTimeSLA `json:"sla_targets"`
	AutoRefreshIntervalMs int64                    `json:"auto_refresh_interval_ms"`
}

// UpdateWaitingSettingsRequest replaces only the fields that are present
type UpdateWaitingSettingsRequest struct {
	SLATargets            *[]domain.ResponseTimeSLA `json:"sla_targets"`
	AutoRefreshIntervalMs *int64                    `json:"auto_refresh_interval_ms"`
}

// Validate checks bounds and normalizes relationship names
func (r *UpdateWaitingSettingsRequest) Validate() error {
	if r.AutoRefreshIntervalMs != nil && *r.AutoRefreshIntervalMs < 0 {
		return fmt.Errorf("auto_refresh_interval_ms must not be negative")
	}
	if r.SLATargets == nil {
		return nil
	}
	targets := *r.SLATargets
	for i, sla := range targets {
		rel, ok := domain.ParseRelationship(string(sla.Relationship))
		if !ok {
			return fmt.Errorf("unknown relationship %q", sla.Relationship)
		}
		if sla.MaxHours <= 0 {
			return fmt.Errorf("max_hours must be positive for %s", sla.Relationship)
		}
		targets[i].Relationship = rel
	}
	return nil
}
