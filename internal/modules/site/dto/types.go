package dto

import "time"

type PluginInfo struct {
	Name    string
	SiteID  string
	Version string
	Enabled bool
	Binary  string
}

type DoctorResult struct {
	Name            string
	SiteID          string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Error           string
}

type BookmarkOutput struct {
	SiteID    string
	PostID    string
	Author    string
	Text      string
	Permalink string
	SavedAt   time.Time
}
