package boltrepos

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/visalms/lms/core/settings"
)

// SettingsRepository is the bolt implementation of settings.Repository.
type SettingsRepository struct {
	client *Client
}

var _ settings.Repository = (*SettingsRepository)(nil)

func (repo *SettingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	var s settings.Settings
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		found, err := get(tx.Bucket(settingsBucket), settingsKey, &s)
		if err != nil {
			return err
		}
		if !found {
			return settings.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (repo *SettingsRepository) SaveSettings(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(settingsBucket), settingsKey, s)
	})
	if err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}
