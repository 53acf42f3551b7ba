package services

import (
	"context"
	"log"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

const (
	// DefaultPageSize bounds memory and time per scanner iteration.
	DefaultPageSize = 500
	// DefaultRecordCap is the hard per-job record ceiling from which the
	// fail-safe iteration count derives.
	DefaultRecordCap = 100000
)

// RecordPager fetches one keyset page of pending staging records for a job.
type RecordPager interface {
	FetchPage(ctx context.Context, jobID uint, afterID uint, limit int) ([]models.StagingRecord, error)
}

// ChunkFunc processes one page and reports how many records it consumed.
type ChunkFunc func(ctx context.Context, page []models.StagingRecord) (processed int, err error)

// RecordScanner iterates an unbounded result set in bounded pages using a
// last-seen-ID cursor. A page returning zero rows terminates the scan; the
// fail-safe counter caps total iterations against faulty predicates.
type RecordScanner struct {
	Pager     RecordPager
	PageSize  int
	RecordCap int

	// OnProgress runs after every page so partial work is observable before
	// the scan completes. Optional.
	OnProgress func(ctx context.Context, processed int) error
}

// Scan drives fn over the job's pending records. It returns the total number
// of records processed plus ErrScanCircuitBreaker when the iteration cap
// trips, or ctx.Err() when cancellation is observed at a page boundary.
func (s *RecordScanner) Scan(ctx context.Context, jobID uint, fn ChunkFunc) (int, error) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	recordCap := s.RecordCap
	if recordCap <= 0 {
		recordCap = DefaultRecordCap
	}

	// ceil(recordCap / pageSize): the maximum number of page fetches any
	// well-formed predicate can need.
	failSafe := (recordCap + pageSize - 1) / pageSize

	var lastSeenID uint
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if failSafe <= 0 {
			log.Printf("record scan fail-safe tripped for job %d after %d records (cursor %d)", jobID, total, lastSeenID)
			return total, ErrScanCircuitBreaker
		}
		failSafe--

		page, err := s.Pager.FetchPage(ctx, jobID, lastSeenID, pageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}

		processed, err := fn(ctx, page)
		total += processed
		if err != nil {
			return total, err
		}

		// IDs are strictly increasing within a tenant-scoped query, so the
		// greatest ID on the page advances the cursor monotonically.
		for _, rec := range page {
			if rec.ID > lastSeenID {
				lastSeenID = rec.ID
			}
		}

		if s.OnProgress != nil {
			if err := s.OnProgress(ctx, processed); err != nil {
				return total, err
			}
		}
	}
}

type gormRecordPager struct {
	db *gorm.DB
}

func NewGormRecordPager(db *gorm.DB) RecordPager {
	if db == nil {
		db = config.DB
	}
	return &gormRecordPager{db: db}
}

func (p *gormRecordPager) FetchPage(ctx context.Context, jobID uint, afterID uint, limit int) ([]models.StagingRecord, error) {
	var page []models.StagingRecord
	err := p.db.WithContext(ctx).
		Where("job_id = ? AND status = ? AND id > ?", jobID, models.StagingRecordStatusPending, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&page).Error
	if err != nil {
		return nil, err
	}
	return page, nil
}
