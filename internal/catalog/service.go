/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog provides media lookup and selection over the library database.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/munin_radio/internal/models"
)

// Store is the catalog surface the session engine depends on.
type Store interface {
	RandomMedia(ctx context.Context, channelID string, n int) ([]models.MediaItem, error)
	Search(ctx context.Context, term string) ([]models.MediaItem, error)
	RecordPlay(ctx context.Context, channelID, mediaID string) error
}

// Service implements Store using gorm.
type Service struct {
	db            *gorm.DB
	mediaRoot     string
	randomHistory int
	logger        zerolog.Logger
}

// NewService creates a catalog service.
func NewService(database *gorm.DB, mediaRoot string, randomHistory int, logger zerolog.Logger) *Service {
	return &Service{
		db:            database,
		mediaRoot:     mediaRoot,
		randomHistory: randomHistory,
		logger:        logger.With().Str("component", "catalog").Logger(),
	}
}

// RandomMedia picks n random items, excluding the channel's most recent plays
// when the library is large enough to allow it.
func (s *Service) RandomMedia(ctx context.Context, channelID string, n int) ([]models.MediaItem, error) {
	if n < 1 {
		n = 1
	}

	var recent []string
	if s.randomHistory > 0 {
		err := s.db.WithContext(ctx).
			Model(&models.PlayHistory{}).
			Where("channel_id = ?", channelID).
			Order("played_at DESC").
			Limit(s.randomHistory).
			Pluck("media_id", &recent).Error
		if err != nil {
			return nil, fmt.Errorf("query play history: %w", err)
		}
	}

	query := s.db.WithContext(ctx).Model(&models.MediaItem{})
	if len(recent) > 0 {
		var total int64
		if err := s.db.WithContext(ctx).Model(&models.MediaItem{}).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count media: %w", err)
		}
		// Only exclude history when enough other items remain.
		if total > int64(len(recent)+n) {
			query = query.Where("id NOT IN ?", recent)
		}
	}

	var items []models.MediaItem
	if err := query.Order(randomOrder(s.db)).Limit(n).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("random media: %w", err)
	}

	for i := range items {
		items[i].Path = s.absolutePath(items[i].Path)
	}
	return items, nil
}

// Search looks up media by title or artist substring.
func (s *Service) Search(ctx context.Context, term string) ([]models.MediaItem, error) {
	pattern := "%" + term + "%"

	var items []models.MediaItem
	err := s.db.WithContext(ctx).
		Where("title LIKE ? OR artist LIKE ?", pattern, pattern).
		Order("title ASC").
		Limit(25).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("search media: %w", err)
	}

	for i := range items {
		items[i].Path = s.absolutePath(items[i].Path)
	}
	return items, nil
}

// RecordPlay appends a play history row for the channel.
func (s *Service) RecordPlay(ctx context.Context, channelID, mediaID string) error {
	entry := models.PlayHistory{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		MediaID:   mediaID,
		PlayedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

func (s *Service) absolutePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.mediaRoot, path)
}

// randomOrder returns the backend-specific random ordering clause.
func randomOrder(database *gorm.DB) string {
	if database.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}
