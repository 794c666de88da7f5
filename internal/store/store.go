// Package store keeps parsed lines in PostgreSQL so they can be queried or
// composed again later.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"flatcodec/internal/linejson"
	"flatcodec/internal/model"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "flat_lines"

var columns = []string{"source", "line_number", "line_type", "cells", "cell_errors"}

// Store persists lines of many sources in one table.
type Store struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

// Connect opens a pool and checks that the server answers.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

// New creates a store on table. An empty name selects DefaultTable.
func New(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{pool: pool, table: pgx.Identifier{table}}
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createTableSQL(s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

func createTableSQL(table pgx.Identifier) string {
	return `CREATE TABLE IF NOT EXISTS ` + table.Sanitize() + ` (
	source      TEXT   NOT NULL,
	line_number BIGINT NOT NULL,
	line_type   TEXT   NOT NULL,
	cells       JSONB  NOT NULL,
	cell_errors JSONB,
	PRIMARY KEY (source, line_number)
)`
}

// Insert copies lines of source into the table.
func (s *Store) Insert(ctx context.Context, source string, lines []*model.Line) (int64, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	rows := pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
		return row(source, lines[i])
	})
	n, err := s.pool.CopyFrom(ctx, s.table, columns, rows)
	if err != nil {
		return n, fmt.Errorf("copy %d lines of %s: %w", len(lines), source, err)
	}
	log.Debug().Str("source", source).Int64("rows", n).Msg("Stored lines")
	return n, nil
}

func row(source string, l *model.Line) ([]any, error) {
	cells, err := json.Marshal(linejson.EncodeCells(l))
	if err != nil {
		return nil, fmt.Errorf("encode cells of line %d: %w", l.LineNumber, err)
	}
	var errs []byte
	if l.HasErrors() {
		if errs, err = json.Marshal(linejson.EncodeErrors(l)); err != nil {
			return nil, fmt.Errorf("encode errors of line %d: %w", l.LineNumber, err)
		}
	}
	return []any{source, l.LineNumber, l.LineType, cells, errs}, nil
}

// Lines reads every line of source in line number order.
func (s *Store) Lines(ctx context.Context, source string) (*model.Document, error) {
	query := `SELECT line_number, line_type, cells, cell_errors FROM ` + s.table.Sanitize() +
		` WHERE source = $1 ORDER BY line_number`
	rows, err := s.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("query lines of %s: %w", source, err)
	}
	defer rows.Close()

	doc := &model.Document{}
	for rows.Next() {
		var (
			number       int64
			lineType     string
			cells, cerrs []byte
		)
		if err := rows.Scan(&number, &lineType, &cells, &cerrs); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l, err := decodeRow(number, lineType, cells, cerrs)
		if err != nil {
			return nil, err
		}
		doc.Add(l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read lines of %s: %w", source, err)
	}
	return doc, nil
}

func decodeRow(number int64, lineType string, cells, cerrs []byte) (*model.Line, error) {
	rec := linejson.Record{LineType: lineType, LineNumber: number}
	if err := json.Unmarshal(cells, &rec.Cells); err != nil {
		return nil, fmt.Errorf("decode cells of line %d: %w", number, err)
	}
	if len(cerrs) > 0 {
		if err := json.Unmarshal(cerrs, &rec.Errors); err != nil {
			return nil, fmt.Errorf("decode errors of line %d: %w", number, err)
		}
	}
	return rec.Line()
}

// Delete removes every line of source.
func (s *Store) Delete(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table.Sanitize()+` WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("delete lines of %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}
