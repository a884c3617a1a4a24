/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// MediaItem is a catalog entry available for playback.
type MediaItem struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Title        string `gorm:"index"`
	Artist       string `gorm:"index"`
	Album        string
	Path         string `gorm:"uniqueIndex"`
	DurationMS   int64
	LoudnessLUFS float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlayHistory records a media item start within a session.
type PlayHistory struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ChannelID string `gorm:"index"`
	MediaID   string `gorm:"type:uuid;index"`
	PlayedAt  time.Time
}
