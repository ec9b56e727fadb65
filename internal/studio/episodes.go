package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CreateEpisode inserts a new episode from a submitted script.
func (s *Store) CreateEpisode(ctx context.Context, title, script string) (*Episode, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("episode title is empty")
	}
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("episode script is empty")
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO episodes (title, script) VALUES (?, ?)`,
		title,
		script,
	)
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Episode{ID: id, Title: title, Script: script}, nil
}

// GetEpisode fetches an episode by identifier. Missing episodes return (nil, nil).
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, title, script, runtime FROM episodes WHERE id = ?`,
		id,
	)
	return scanEpisode(row)
}

// LatestEpisode returns the most recently created episode, or nil.
func (s *Store) LatestEpisode(ctx context.Context) (*Episode, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, title, script, runtime FROM episodes ORDER BY id DESC LIMIT 1`,
	)
	return scanEpisode(row)
}

// ListCharacters returns an episode's characters.
func (s *Store) ListCharacters(ctx context.Context, episodeID int64) ([]*Character, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, episode_id, name, description FROM characters WHERE episode_id = ? ORDER BY id`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var characters []*Character
	for rows.Next() {
		ch := &Character{}
		if err := rows.Scan(&ch.ID, &ch.EpisodeID, &ch.Name, &ch.Description); err != nil {
			return nil, err
		}
		characters = append(characters, ch)
	}
	return characters, rows.Err()
}

// ReplaceAnalysis swaps an episode's characters and scenes for freshly
// analyzed ones in a single transaction. Re-running analysis starts over;
// scene version history restarts at zero.
func (s *Store) ReplaceAnalysis(ctx context.Context, episodeID int64, characters []Character, scenes []Scene) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analysis tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("clear characters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("clear scenes: %w", err)
	}

	for _, ch := range characters {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO characters (episode_id, name, description) VALUES (?, ?, ?)`,
			episodeID,
			ch.Name,
			ch.Description,
		); err != nil {
			return fmt.Errorf("insert character %q: %w", ch.Name, err)
		}
	}

	for _, scene := range scenes {
		charactersJSON, err := json.Marshal(scene.Characters)
		if err != nil {
			return fmt.Errorf("encode scene %d characters: %w", scene.SceneIndex, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO scenes (episode_id, scene_index, description, characters) VALUES (?, ?, ?, ?)`,
			episodeID,
			scene.SceneIndex,
			scene.Description,
			string(charactersJSON),
		); err != nil {
			return fmt.Errorf("insert scene %d: %w", scene.SceneIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis: %w", err)
	}
	return nil
}

func scanEpisode(row *sql.Row) (*Episode, error) {
	ep := &Episode{}
	err := row.Scan(&ep.ID, &ep.Title, &ep.Script, &ep.Runtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}
