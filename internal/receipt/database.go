package receipt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	lineItemsBucketName = "line_items"
	reportsBucketName   = "reports"
)

// DB defines the interface for ledger operations
type DB interface {
	// SaveLineItems appends records to the ledger in one transaction
	SaveLineItems(records []*Record) error

	// ListLineItems returns every record in insertion order
	ListLineItems() ([]*Record, error)

	// SaveReport appends a report
	SaveReport(report *StatusReport) error

	// ListReports returns reports in insertion order, limited to origin unless it is empty
	ListReports(origin string) ([]*StatusReport, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{lineItemsBucketName, reportsBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// sequence keys keep ForEach in insertion order
func sequenceKey(b *bbolt.Bucket) ([]byte, error) {
	seq, err := b.NextSequence()
	if err != nil {
		return nil, fmt.Errorf("allocating key: %w", err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key, nil
}

// SaveLineItems appends records to the ledger
func (b *BoltDB) SaveLineItems(records []*Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(lineItemsBucketName))
		for _, record := range records {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshaling line item: %w", err)
			}
			key, err := sequenceKey(bucket)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListLineItems returns all line items
func (b *BoltDB) ListLineItems() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(lineItemsBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling line item: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveReport saves a report to the database
func (b *BoltDB) SaveReport(report *StatusReport) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportsBucketName))
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		key, err := sequenceKey(bucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// ListReports returns the reports for origin, or every report when origin is empty
func (b *BoltDB) ListReports(origin string) ([]*StatusReport, error) {
	reports := make([]*StatusReport, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportsBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var report StatusReport
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshaling report: %w", err)
			}
			if origin == "" || report.Origin == origin {
				reports = append(reports, &report)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
