package domain

import (
	"time"

	talentchain "github.com/kbunet/talentchain"
)

type User struct {
	ID            string           `json:"id"`
	DID           string           `json:"did"`
	WalletAddress string           `json:"walletAddress"`
	Name          string           `json:"name"`
	Email         string           `json:"email,omitempty"`
	Role          talentchain.Role `json:"role"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type Institution struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DID        string    `json:"did"`
	PublicKeys []string  `json:"publicKeys"`
	Approved   bool      `json:"approved"`
	OwnerID    string    `json:"ownerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Employer struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"companyName"`
	DID         string    `json:"did"`
	PublicKeys  []string  `json:"publicKeys"`
	Approved    bool      `json:"approved"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Reputation struct {
	ID        string    `json:"id"`
	TargetDID string    `json:"targetDid"`
	SourceDID string    `json:"sourceDid"`
	Score     int       `json:"score"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
