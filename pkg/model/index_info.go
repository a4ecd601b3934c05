// Package model defines the core data structures used throughout the application.
package model

// IndexInfo describes a registered index.
type IndexInfo struct {
	Name            string  `json:"name"`
	Dimension       int     `json:"dimension"`
	Count           int     `json:"count"`
	Metric          string  `json:"metric"`
	MaxDegree       int     `json:"max_degree"`
	BuildComplexity int     `json:"build_complexity"`
	Alpha           float32 `json:"alpha"`
	ReadOnly        bool    `json:"read_only"`
}
