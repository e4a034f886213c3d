// Package types provides the value types shared across flashledger packages.
package types

import "time"

// Entity carries the timestamps of a persisted record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
