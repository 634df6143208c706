package model

import "time"

// Delivery is an append-only log entry for an item handed to an avatar.
type Delivery struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Item        string    `json:"item"`
	Avatar      string    `json:"avatar"`
	APIKeyUsed  string    `json:"apiKeyUsed"`
	ProcessedBy string    `json:"processedBy"`
}
