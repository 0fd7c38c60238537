package project

import "time"

// Dataset is a data file registered with a project. The fingerprint lets a
// recorded run be matched to the exact table it was computed from.
type Dataset struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rows        int       `json:"rows"`
	Columns     []string  `json:"columns"`
	Fingerprint string    `json:"fingerprint"`
	AddedAt     time.Time `json:"added_at"`
}

// Run records one analysis result written under the project's runs folder.
type Run struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Dataset     string `json:"dataset"`
	Fingerprint string `json:"fingerprint"`
	Rows        int    `json:"rows"`
	Dropped     int    `json:"dropped"`
	// File is relative to the project root.
	File      string    `json:"file"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}
