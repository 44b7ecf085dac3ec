package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Product is an imported product row as handlers see it.
type Product struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Price          float64
	CostPrice      float64
	Currency       string
	SKU            string
	Category       string
	ImageURLs      []string
	SourceURL      string
	SourcePlatform string
	Status         string
}

// InsertProduct stores a newly imported product and returns it with its
// generated id and status filled in.
func (s *Store) InsertProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = uuid.NewString()
	p.Status = "draft"
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	if p.SourcePlatform == "" {
		p.SourcePlatform = "unknown"
	}
	images, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: encode images: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO imported_products
		(id, user_id, title, description, price, cost_price, currency, sku,
		 category, image_urls, source_url, source_platform, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.UserID, p.Title, p.Description, p.Price, p.CostPrice,
		p.Currency, p.SKU, nullable(p.Category), string(images),
		p.SourceURL, p.SourcePlatform, p.Status, s.clock.Now().Unix(),
	)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// CountProductsSince counts a user's imports since the cutoff, for quota
// reporting.
func (s *Store) CountProductsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM imported_products WHERE user_id = ? AND created_at >= ?
	`, userID, since.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// SyncJob is one queued stock/price synchronization.
type SyncJob struct {
	ID         string
	UserID     string
	JobType    string // "stock" | "price"
	Status     string
	ProductIDs []string
}

// EnqueueSyncJob queues a pending sync job and returns it with id and status.
func (s *Store) EnqueueSyncJob(ctx context.Context, userID, jobType string, productIDs []string) (SyncJob, error) {
	job := SyncJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		JobType:    jobType,
		Status:     "pending",
		ProductIDs: productIDs,
	}
	ids, err := json.Marshal(productIDs)
	if err != nil {
		return SyncJob{}, fmt.Errorf("enqueue sync job: encode ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, user_id, job_type, status, product_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, userID, jobType, job.Status, string(ids), s.clock.Now().Unix())
	if err != nil {
		return SyncJob{}, fmt.Errorf("enqueue sync job: %w", err)
	}
	return job, nil
}

// GetSettings returns a user's extension settings as a decoded object.
// A user with no row gets an empty object, not an error.
func (s *Store) GetSettings(ctx context.Context, userID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT settings FROM user_settings WHERE user_id = ?
	`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	var settings map[string]any
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("get settings: decode: %w", err)
	}
	return settings, nil
}
