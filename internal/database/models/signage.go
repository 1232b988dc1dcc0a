package models

import (
	"time"

	"github.com/google/uuid"
)

type DisplayStatus string

const (
	DisplayOnline  DisplayStatus = "online"
	DisplayOffline DisplayStatus = "offline"
	DisplayPairing DisplayStatus = "pairing"
)

// Display is a paired screen. Counted against Organization.ScreenQuota.
type Display struct {
	Base
	OrganizationID   uuid.UUID     `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name             string        `gorm:"not null" json:"name"`
	DeviceIdentifier string        `gorm:"index" json:"device_identifier,omitempty"`
	Location         string        `json:"location,omitempty"`
	Status           DisplayStatus `gorm:"not null;index" json:"status"`
	LastHeartbeatAt  *time.Time    `json:"last_heartbeat_at,omitempty"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Display) TableName() string {
	return "displays"
}

type Content struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Type           string    `gorm:"not null" json:"type"` // image, video, url, html
	URL            string    `json:"url,omitempty"`
	FileSize       int64     `json:"file_size"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Content) TableName() string {
	return "content"
}

type Playlist struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `json:"description,omitempty"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Playlist) TableName() string {
	return "playlists"
}
