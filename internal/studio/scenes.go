package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const sceneColumns = "id, episode_id, scene_index, description, characters, prompt, negative_prompt, latest_version"

// ListScenes returns an episode's scenes ordered by scene index.
func (s *Store) ListScenes(ctx context.Context, episodeID int64) ([]*Scene, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+sceneColumns+` FROM scenes WHERE episode_id = ? ORDER BY scene_index`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// GetScene fetches one scene by its stable index within an episode.
// Missing scenes return (nil, nil).
func (s *Store) GetScene(ctx context.Context, episodeID, sceneIndex int64) (*Scene, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+sceneColumns+` FROM scenes WHERE episode_id = ? AND scene_index = ?`,
		episodeID,
		sceneIndex,
	)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// SetScenePrompts applies generated prompt text to scenes in one transaction.
func (s *Store) SetScenePrompts(ctx context.Context, episodeID int64, prompts []ScenePrompt) error {
	if len(prompts) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prompts tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, prompt := range prompts {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE scenes SET prompt = ?, negative_prompt = ? WHERE episode_id = ? AND scene_index = ?`,
			nullableString(prompt.Prompt),
			nullableString(prompt.NegativePrompt),
			episodeID,
			prompt.SceneIndex,
		); err != nil {
			return fmt.Errorf("update scene %d prompt: %w", prompt.SceneIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prompts: %w", err)
	}
	return nil
}

// AdvanceSceneVersion moves a scene's latest completed artifact version
// forward. The guarded UPDATE applies only when the new version is strictly
// greater than the stored one, making the operation atomic and monotone:
// duplicate or out-of-order completion reports are silent no-ops. Returns
// whether the version actually advanced.
func (s *Store) AdvanceSceneVersion(ctx context.Context, episodeID, sceneIndex, version int64) (bool, error) {
	if version <= 0 {
		return false, fmt.Errorf("version must be positive, got %d", version)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scenes SET latest_version = ?
         WHERE episode_id = ? AND scene_index = ? AND latest_version < ?`,
		version,
		episodeID,
		sceneIndex,
		version,
	)
	if err != nil {
		return false, fmt.Errorf("advance scene version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanScene(scanner interface{ Scan(dest ...any) error }) (*Scene, error) {
	var (
		id            int64
		episodeID     int64
		sceneIndex    int64
		description   sql.NullString
		charactersRaw sql.NullString
		prompt        sql.NullString
		negative      sql.NullString
		latestVersion int64
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&sceneIndex,
		&description,
		&charactersRaw,
		&prompt,
		&negative,
		&latestVersion,
	); err != nil {
		return nil, err
	}

	scene := &Scene{
		ID:             id,
		EpisodeID:      episodeID,
		SceneIndex:     sceneIndex,
		Description:    description.String,
		Prompt:         prompt.String,
		NegativePrompt: negative.String,
		LatestVersion:  latestVersion,
	}
	if charactersRaw.Valid && charactersRaw.String != "" {
		if err := json.Unmarshal([]byte(charactersRaw.String), &scene.Characters); err != nil {
			return nil, fmt.Errorf("decode scene characters: %w", err)
		}
	}
	return scene, nil
}
