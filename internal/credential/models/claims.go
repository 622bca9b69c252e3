package models

import "time"

const (
	TypeSafeguardingCredential  = "SafeguardingCredential"
	TypeAchievementCredential   = "AchievementCredential"
	TypeQualificationCredential = "QualificationCredential"
)

// SafeguardingClaims describe a background or safeguarding check.
type SafeguardingClaims struct {
	CheckType         string
	CheckStatus       string
	CertificateNumber string
	CheckedAt         time.Time
	ExpiresAt         *time.Time
	Jurisdiction      string
}

// Claims renders the check as a credentialSubject payload.
func (c SafeguardingClaims) Claims() map[string]any {
	out := map[string]any{
		"checkType":   c.CheckType,
		"checkStatus": c.CheckStatus,
		"checkDate":   c.CheckedAt.UTC().Format(time.RFC3339),
	}
	if c.CertificateNumber != "" {
		out["certificateNumber"] = c.CertificateNumber
	}
	if c.ExpiresAt != nil {
		out["checkExpiry"] = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if c.Jurisdiction != "" {
		out["jurisdiction"] = c.Jurisdiction
	}
	return out
}

// AchievementClaims describe a completed achievement or badge.
type AchievementClaims struct {
	Name        string
	Description string
	Criteria    string
	Level       string
	AchievedAt  time.Time
}

func (c AchievementClaims) Claims() map[string]any {
	achievement := map[string]any{"name": c.Name}
	if c.Description != "" {
		achievement["description"] = c.Description
	}
	if c.Criteria != "" {
		achievement["criteria"] = c.Criteria
	}
	out := map[string]any{
		"achievement": achievement,
		"achievedAt":  c.AchievedAt.UTC().Format(time.RFC3339),
	}
	if c.Level != "" {
		out["level"] = c.Level
	}
	return out
}

// QualificationClaims describe an awarded qualification.
type QualificationClaims struct {
	Title        string
	AwardingBody string
	Subject      string
	Level        string
	Grade        string
	AwardedAt    time.Time
}

func (c QualificationClaims) Claims() map[string]any {
	out := map[string]any{
		"qualification": c.Title,
		"awardingBody":  c.AwardingBody,
		"awardedAt":     c.AwardedAt.UTC().Format(time.RFC3339),
	}
	if c.Subject != "" {
		out["subject"] = c.Subject
	}
	if c.Level != "" {
		out["level"] = c.Level
	}
	if c.Grade != "" {
		out["grade"] = c.Grade
	}
	return out
}
