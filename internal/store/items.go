package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arkdrop/internal/models"
)

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("item not found")

const itemColumns = "id, content, favorite, created_at, updated_at"
const attachmentColumns = "id, item_id, file_name, file_path, file_size, content_type"

// CreateItem inserts an item and its attachments in one transaction and
// fills in the assigned ids.
func (s *Store) CreateItem(ctx context.Context, item *models.Item) (err error) {
	if item == nil {
		return fmt.Errorf("item is required")
	}
	now := time.Now().Unix()
	if item.CreatedAt == 0 {
		item.CreatedAt = now
	}
	if item.UpdatedAt == 0 {
		item.UpdatedAt = item.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO items (content, favorite, created_at, updated_at) VALUES (?, ?, ?, ?)",
		item.Content, boolToInt(item.Favorite), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	for i := range item.Attachments {
		att := &item.Attachments[i]
		res, err := tx.ExecContext(ctx,
			"INSERT INTO attachments (item_id, file_name, file_path, file_size, content_type, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, att.FileName, att.FilePath, att.FileSize, att.ContentType, item.CreatedAt,
		)
		if err != nil {
			return err
		}
		att.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListItems returns every item, newest first, with attachments.
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Item{}
	index := map[int64]int{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		item.Attachments = []models.Attachment{}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	attRows, err := s.db.QueryContext(ctx, "SELECT "+attachmentColumns+" FROM attachments ORDER BY item_id, id")
	if err != nil {
		return nil, err
	}
	defer attRows.Close()
	for attRows.Next() {
		var itemID int64
		var att models.Attachment
		if err := attRows.Scan(&att.ID, &itemID, &att.FileName, &att.FilePath, &att.FileSize, &att.ContentType); err != nil {
			return nil, err
		}
		if i, ok := index[itemID]; ok {
			items[i].Attachments = append(items[i].Attachments, att)
		}
	}
	return items, attRows.Err()
}

// GetItem returns one item with attachments.
func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Attachments, err = s.listAttachments(ctx, s.db, "WHERE item_id = ?", id)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ToggleFavorite flips the favorite flag and refreshes updated_at, which
// restarts the item's expiry window.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET favorite = 1 - favorite, updated_at = ? WHERE id = ?",
		time.Now().Unix(), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteItem removes an item and returns its attachment paths so the
// caller can delete the files.
func (s *Store) DeleteItem(ctx context.Context, id int64) (paths []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	atts, err := s.listAttachments(ctx, tx, "WHERE item_id = ?", id)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return filePaths(atts), nil
}

// Clean removes every item and returns all attachment paths.
func (s *Store) Clean(ctx context.Context) (paths []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	atts, err := s.listAttachments(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return filePaths(atts), nil
}

// DeleteExpired removes non-favorite items not updated since cutoff. It
// returns the number of items removed and their attachment paths.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (count int, paths []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const expired = "favorite = 0 AND updated_at < ?"
	atts, err := s.listAttachments(ctx, tx,
		"WHERE item_id IN (SELECT id FROM items WHERE "+expired+")", cutoff.Unix())
	if err != nil {
		return 0, nil, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE "+expired, cutoff.Unix())
	if err != nil {
		return 0, nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return int(affected), filePaths(atts), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) listAttachments(ctx context.Context, q queryer, where string, args ...any) ([]models.Attachment, error) {
	query := "SELECT " + attachmentColumns + " FROM attachments"
	if where = strings.TrimSpace(where); where != "" {
		query += " " + where
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		var itemID int64
		var att models.Attachment
		if err := rows.Scan(&att.ID, &itemID, &att.FileName, &att.FilePath, &att.FileSize, &att.ContentType); err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

func scanItem(scanner interface {
	Scan(dest ...any) error
}) (models.Item, error) {
	var item models.Item
	var favorite int
	if err := scanner.Scan(&item.ID, &item.Content, &favorite, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return models.Item{}, err
	}
	item.Favorite = favorite != 0
	return item, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func filePaths(atts []models.Attachment) []string {
	out := make([]string, 0, len(atts))
	for _, att := range atts {
		out = append(out, att.FilePath)
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
