package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

type WorkerPingStore struct{}

func NewWorkerPingStore() *WorkerPingStore {
	return &WorkerPingStore{}
}

func (s *WorkerPingStore) Upsert(ctx context.Context, db store.DBTX, ping *domain.WorkerPing) error {
	_, err := db.Exec(ctx, `
		INSERT INTO worker_ping (worker_name, last_ping, ip, custom_tags)
		VALUES ($1, now(), $2, $3)
		ON CONFLICT (worker_name) DO UPDATE
		SET last_ping = now(), ip = EXCLUDED.ip, custom_tags = EXCLUDED.custom_tags`,
		ping.WorkerName, ping.IP, ping.CustomTags)
	if err != nil {
		return fmt.Errorf("upsert worker ping: %w", err)
	}
	return nil
}

func (s *WorkerPingStore) ListSince(ctx context.Context, db store.DBTX, since time.Time) ([]*domain.WorkerPing, error) {
	rows, err := db.Query(ctx, `
		SELECT worker_name, last_ping, ip, custom_tags
		FROM worker_ping WHERE last_ping >= $1
		ORDER BY worker_name`, since)
	if err != nil {
		return nil, fmt.Errorf("list worker pings: %w", err)
	}
	defer rows.Close()

	var out []*domain.WorkerPing
	for rows.Next() {
		var p domain.WorkerPing
		if err := rows.Scan(&p.WorkerName, &p.LastPing, &p.IP, &p.CustomTags); err != nil {
			return nil, fmt.Errorf("scan worker ping: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
