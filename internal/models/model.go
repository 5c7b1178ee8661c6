package models

import "time"

// UpstreamModel is one entry of the model server's local catalog.
type UpstreamModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}
