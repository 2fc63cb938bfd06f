// Package store implements the upload session, file catalog and audit log
// persistence used by the upload manager.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"admin-backend/internal/audit"
	"admin-backend/internal/upload"
)

// Postgres stores sessions, parts, files and audit entries in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pool. The schema is expected to be migrated.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Ping reports whether the database answers.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

const sessionColumns = `upload_id, file_id, user_id, storage_key, filename, content_type, size, part_size, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (upload.Session, error) {
	var s upload.Session
	err := row.Scan(&s.UploadID, &s.FileID, &s.OwnerID, &s.StorageKey, &s.Filename,
		&s.ContentType, &s.DeclaredSize, &s.PartSize, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (p *Postgres) CreateUpload(ctx context.Context, s upload.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO uploads (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.UploadID, s.FileID, s.OwnerID, s.StorageKey, s.Filename, s.ContentType,
		s.DeclaredSize, s.PartSize, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (p *Postgres) FindUpload(ctx context.Context, uploadID string) (upload.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM uploads WHERE upload_id = $1`, uploadID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return upload.Session{}, upload.ErrRecordNotFound
	}
	if err != nil {
		return upload.Session{}, fmt.Errorf("find upload: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListParts(ctx context.Context, uploadID string) ([]upload.Part, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT upload_id, part_number, etag, updated_at
		FROM upload_parts
		WHERE upload_id = $1
		ORDER BY part_number ASC
	`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	parts := []upload.Part{}
	for rows.Next() {
		var part upload.Part
		if err := rows.Scan(&part.UploadID, &part.PartNumber, &part.ETag, &part.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// UpsertPart touches the session row first. The row lock it takes orders the
// upsert against a concurrent FinalizeUpload or DeleteUpload.
func (p *Postgres) UpsertPart(ctx context.Context, uploadID string, partNumber int, etag string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE uploads SET updated_at = now() WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("touch upload: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("touch upload: %w", err)
	} else if n == 0 {
		return upload.ErrRecordNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO upload_parts (upload_id, part_number, etag, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (upload_id, part_number)
		DO UPDATE SET etag = EXCLUDED.etag, updated_at = EXCLUDED.updated_at
	`, uploadID, partNumber, etag)
	if err != nil {
		return fmt.Errorf("upsert part: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteUpload(ctx context.Context, uploadID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM uploads WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return requireRow(res)
}

// FinalizeUpload deletes the session and inserts the file in one
// transaction. Of two concurrent callers only the one whose DELETE removes
// the row proceeds; the other sees zero affected rows.
func (p *Postgres) FinalizeUpload(ctx context.Context, uploadID string, meta upload.FileMetadata) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := insertFile(ctx, tx, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) ListStaleUploads(ctx context.Context, before time.Time, limit int) ([]upload.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM uploads
		WHERE updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale uploads: %w", err)
	}
	defer rows.Close()

	var out []upload.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertFile(ctx context.Context, db execer, meta upload.FileMetadata) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO files (id, user_id, filename, content_type, size, storage_key, uploaded_at,
		                   uploader_username, uploader_global_name, uploader_avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, meta.ID, meta.OwnerID, meta.Filename, meta.ContentType, meta.Size, meta.StorageKey, meta.UploadedAt,
		nullString(meta.UploaderUsername), nullString(meta.UploaderGlobalName), nullString(meta.UploaderAvatarURL))
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

const fileColumns = `id, user_id, filename, content_type, size, storage_key, uploaded_at,
	uploader_username, uploader_global_name, uploader_avatar_url`

func scanFile(row scanner) (upload.FileMetadata, error) {
	var (
		meta                         upload.FileMetadata
		username, globalName, avatar sql.NullString
	)
	err := row.Scan(&meta.ID, &meta.OwnerID, &meta.Filename, &meta.ContentType, &meta.Size,
		&meta.StorageKey, &meta.UploadedAt, &username, &globalName, &avatar)
	meta.UploaderUsername = username.String
	meta.UploaderGlobalName = globalName.String
	meta.UploaderAvatarURL = avatar.String
	return meta, err
}

func (p *Postgres) InsertFileMetadata(ctx context.Context, meta upload.FileMetadata) error {
	return insertFile(ctx, p.db, meta)
}

func (p *Postgres) FindFileMetadata(ctx context.Context, fileID string) (upload.FileMetadata, error) {
	meta, err := scanFile(p.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return upload.FileMetadata{}, upload.ErrRecordNotFound
	}
	if err != nil {
		return upload.FileMetadata{}, fmt.Errorf("find file: %w", err)
	}
	return meta, nil
}

func (p *Postgres) ListFileMetadata(ctx context.Context, ownerID string) ([]upload.FileMetadata, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	var args []interface{}
	if ownerID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []upload.FileMetadata{}
	for rows.Next() {
		meta, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, meta)
	}
	return files, rows.Err()
}

func (p *Postgres) DeleteFileMetadata(ctx context.Context, fileID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) InsertAuditLog(ctx context.Context, e audit.Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, resource_type, resource_id, action, before_data, after_data,
		                        actor_discord_id, actor_username, actor_global_name, actor_avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11)
	`, e.ID, e.ResourceType, e.ResourceID, string(e.Action),
		nullString(string(e.Before)), nullString(string(e.After)),
		nullString(e.Actor.DiscordID), e.Actor.Username, nullString(e.Actor.GlobalName), nullString(e.Actor.AvatarURL),
		e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (p *Postgres) ListAuditLogs(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	query := `
		SELECT id, resource_type, resource_id, action, before_data::text, after_data::text,
		       actor_discord_id, actor_username, actor_global_name, actor_avatar_url, created_at
		FROM audit_logs
		WHERE 1=1`
	var args []interface{}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		query += ` AND resource_type = $` + strconv.Itoa(len(args))
	}
	if f.ResourceID != "" {
		args = append(args, f.ResourceID)
		query += ` AND resource_id = $` + strconv.Itoa(len(args))
	}
	args = append(args, f.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e                                audit.Entry
			action                           string
			before, after                    sql.NullString
			discordID, globalName, avatarURL sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ResourceType, &e.ResourceID, &action, &before, &after,
			&discordID, &e.Actor.Username, &globalName, &avatarURL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = audit.Action(action)
		if before.Valid {
			e.Before = []byte(before.String)
		}
		if after.Valid {
			e.After = []byte(after.String)
		}
		e.Actor.DiscordID = discordID.String
		e.Actor.GlobalName = globalName.String
		e.Actor.AvatarURL = avatarURL.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return upload.ErrRecordNotFound
	}
	return nil
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}
