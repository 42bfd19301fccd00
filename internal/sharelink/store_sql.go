package sharelink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists share links in the share_links table (see internal/db).
// Timestamps are stored as unix seconds in UTC so sqlite and postgres
// behave identically.
type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Create(ctx context.Context, l ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links
		  (identifier, file_data_identifier, bucket_identifier, filesystem_path, link, valid_until)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.Identifier, l.FileDataIdentifier, l.BucketIdentifier, l.FilesystemPath, l.Link, l.ValidUntil.UTC().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *SQLStore) GetByID(ctx context.Context, identifier string) (ShareLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifier, file_data_identifier, bucket_identifier, filesystem_path, link, valid_until
		FROM share_links WHERE identifier=$1`, identifier)
	return scanLink(row)
}

func (s *SQLStore) GetAllByFileID(ctx context.Context, fileDataIdentifier string) ([]ShareLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, file_data_identifier, bucket_identifier, filesystem_path, link, valid_until
		FROM share_links WHERE file_data_identifier=$1`, fileDataIdentifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShareLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, identifier string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM share_links WHERE identifier=$1`, identifier)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteMany(ctx context.Context, identifiers []string) error {
	for _, id := range identifiers {
		if err := s.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *SQLStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM share_links WHERE valid_until < $1`, now.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %v", ErrPersist, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(r rowScanner) (ShareLink, error) {
	var l ShareLink
	var validUntil int64
	err := r.Scan(&l.Identifier, &l.FileDataIdentifier, &l.BucketIdentifier,
		&l.FilesystemPath, &l.Link, &validUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return ShareLink{}, ErrNotFound
	}
	if err != nil {
		return ShareLink{}, err
	}
	l.ValidUntil = time.Unix(validUntil, 0).UTC()
	return l, nil
}
