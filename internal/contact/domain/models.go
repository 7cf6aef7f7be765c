// Package domain contains persistence models for contacts and contact groups.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Contact is a single address-book entry owned by a user.
type Contact struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"type:text;not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Email     string       `json:"email" gorm:"type:text"`
	Company   string       `json:"company" gorm:"type:text"`
	Title     string       `json:"title" gorm:"type:text"`
	Notes     string       `json:"notes" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Contact) TableName() string { return "contacts" }

// Group types produced by the analysis pipeline, plus user-created groups.
const (
	GroupTypeCompany      = "ai_company"
	GroupTypeIndustry     = "ai_industry"
	GroupTypeRelationship = "ai_relationship"
	GroupTypeCustom       = "custom"
)

// Group is a named cluster of contacts. AI-generated groups carry model
// metadata (model id, confidence, reasoning) under Metadata.
type Group struct {
	ID          snowflake.ID                `json:"id" gorm:"primaryKey"`
	UserID      string                      `json:"user_id" gorm:"type:text;not null;index"`
	Name        string                      `json:"name" gorm:"type:text;not null"`
	Description string                      `json:"description" gorm:"type:text"`
	Type        string                      `json:"type" gorm:"type:text;not null"`
	ContactIDs  datatypes.JSONSlice[string] `json:"contact_ids"`
	Metadata    datatypes.JSONMap           `json:"metadata"`
	CreatedAt   time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Group) TableName() string { return "contact_groups" }

// AIGenerated reports whether the group came out of the analysis pipeline.
func (g Group) AIGenerated() bool {
	v, ok := g.Metadata["ai_generated"].(bool)
	return ok && v
}
