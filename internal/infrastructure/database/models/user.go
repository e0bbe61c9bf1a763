package models

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	DID           string    `json:"did" gorm:"type:text;uniqueIndex;not null"`
	WalletAddress string    `json:"walletAddress" gorm:"type:text;index"`
	Name          string    `json:"name" gorm:"type:text;not null"`
	Email         string    `json:"email,omitempty" gorm:"type:text"`
	Role          string    `json:"role" gorm:"type:text;not null;default:'user'"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate         time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type Institution struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	Name       string         `json:"name" gorm:"type:text;not null"`
	DID        string         `json:"did" gorm:"type:text;uniqueIndex;not null"`
	PublicKeys pq.StringArray `json:"publicKeys" gorm:"type:text[]"`
	Approved   bool           `json:"approved" gorm:"not null;default:false"`
	OwnerID    string         `json:"ownerId" gorm:"type:uuid;index"`
	CDate      time.Time      `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate      time.Time      `json:"mdate" gorm:"autoUpdateTime"`
}

type Employer struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyName string         `json:"companyName" gorm:"type:text;not null"`
	DID         string         `json:"did" gorm:"type:text;uniqueIndex;not null"`
	PublicKeys  pq.StringArray `json:"publicKeys" gorm:"type:text[]"`
	Approved    bool           `json:"approved" gorm:"not null;default:false"`
	OwnerID     string         `json:"ownerId" gorm:"type:uuid;index"`
	CDate       time.Time      `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate       time.Time      `json:"mdate" gorm:"autoUpdateTime"`
}

type Reputation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	TargetDID string    `json:"targetDid" gorm:"type:text;index;not null"`
	SourceDID string    `json:"sourceDid" gorm:"type:text;index;not null"`
	Score     int       `json:"score" gorm:"not null"`
	Message   string    `json:"message,omitempty" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
