package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fiffu/tickerwatch/lib/models"
	bolt "go.etcd.io/bbolt"
)

var (
	checkpointsBucket = []byte("checkpoints")
	subscribersBucket = []byte("subscribers")
	companiesBucket   = []byte("companies")
)

// BoltStore is the embedded single-file alternative to GormStore.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{checkpointsBucket, subscribersBucket, companiesBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) GetLast(_ context.Context, source string) (models.Watermark, bool, error) {
	var cp models.Checkpoint
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(checkpointsBucket).Get([]byte(source))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &cp)
	})
	if err != nil || !found {
		return models.Watermark{}, false, err
	}

	w, err := models.ParseWatermark(cp.LastID)
	if err != nil {
		return models.Watermark{}, false, err
	}
	return w, true, nil
}

func (s *BoltStore) UpdateLast(_ context.Context, source string, w models.Watermark) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(models.Checkpoint{
			SourceName: source,
			LastID:     w.String(),
			UpdatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(checkpointsBucket).Put([]byte(source), data)
	})
}

func subscriberKey(sub models.Subscriber) []byte {
	return []byte(sub.String())
}

func (s *BoltStore) AddSubscriber(_ context.Context, sub models.Subscriber) (models.Subscriber, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(subscribersBucket)
		if existing := b.Get(subscriberKey(sub)); existing != nil {
			return json.Unmarshal(existing, &sub)
		}
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		return b.Put(subscriberKey(sub), data)
	})
	return sub, err
}

func (s *BoltStore) RemoveSubscriber(_ context.Context, sub models.Subscriber) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(subscribersBucket).Delete(subscriberKey(sub))
	})
}

func (s *BoltStore) ListSubscribers(_ context.Context) (models.Subscribers, error) {
	var subs models.Subscribers
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(subscribersBucket).ForEach(func(_, v []byte) error {
			var sub models.Subscriber
			if err := json.Unmarshal(v, &sub); err != nil {
				return err
			}
			subs = append(subs, sub)
			return nil
		})
	})
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, err
}

func (s *BoltStore) ListCompanies(_ context.Context) (models.Companies, error) {
	var companies models.Companies
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(companiesBucket).ForEach(func(k, v []byte) error {
			companies = append(companies, models.Company{Name: string(k), Ticker: string(v)})
			return nil
		})
	})
	return companies, err
}

func (s *BoltStore) InsertCompanies(_ context.Context, companies models.Companies) (int, error) {
	var inserted int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(companiesBucket)
		for _, c := range companies {
			if b.Get([]byte(c.Name)) != nil {
				continue
			}
			if err := b.Put([]byte(c.Name), []byte(c.Ticker)); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}
