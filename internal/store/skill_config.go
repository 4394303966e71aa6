// ABOUTME: Persisted per-skill numeric configuration (conversion rates,
// ABOUTME: thresholds) validated by the registry against canonical constants.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSkillConfig returns the persisted numeric configuration for a skill,
// or (nil, nil) when none has been stored.
func (s *Store) GetSkillConfig(ctx context.Context, skillName string) (map[string]float64, error) {
	var raw json.RawMessage
	err := s.pool.QueryRow(ctx, `
		SELECT config FROM skill_configs WHERE skill_name = $1`, skillName).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill config %q: %w", skillName, err)
	}
	var cfg map[string]float64
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode skill config %q: %w", skillName, err)
	}
	return cfg, nil
}

// UpsertSkillConfig stores the numeric configuration for a skill, replacing
// any previous value.
func (s *Store) UpsertSkillConfig(ctx context.Context, skillName string, cfg map[string]float64) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode skill config %q: %w", skillName, err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO skill_configs (skill_name, config)
		VALUES ($1, $2)
		ON CONFLICT (skill_name) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		skillName, raw); err != nil {
		return fmt.Errorf("upsert skill config %q: %w", skillName, err)
	}
	return nil
}
