// Package boltrepos implements the repositories on an embedded bbolt document store.
// Every collection is a bucket of JSON documents keyed by ID; unique fields get an index bucket.
package boltrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// ErrUnableToOpen means we had an issue establishing a connection (or creating the database)
	ErrUnableToOpen = "unable to open boltdb; is another LMS process running? %v"
	// ErrUnableToInitialize means we couldn't create missing Buckets
	ErrUnableToInitialize = "unable to boot boltdb: %v"

	settingsKey = "settings"
)

var (
	usersBucket     = []byte("users")
	userIndexBucket = []byte("users_index") // "username:<username>" | "email:<email>" -> id
	leadsBucket     = []byte("leads")
	leadIndexBucket = []byte("leads_index") // "email:<email>" -> id
	followupsBucket = []byte("followups")
	settingsBucket  = []byte("settings")

	allBuckets = [][]byte{usersBucket, userIndexBucket, leadsBucket, leadIndexBucket, followupsBucket, settingsBucket}
)

// Client is a client for the boltDB data store.
type Client struct {
	Path string
	db   *bolt.DB

	UsersRepo     *UserRepository
	LeadsRepo     *LeadRepository
	FollowupsRepo *FollowupRepository
	SettingsRepo  *SettingsRepository
}

// NewClient initializes all repositories.
func NewClient(path string) *Client {
	c := &Client{Path: path}
	c.UsersRepo = &UserRepository{client: c}
	c.LeadsRepo = &LeadRepository{client: c}
	c.FollowupsRepo = &FollowupRepository{client: c}
	c.SettingsRepo = &SettingsRepository{client: c}
	return c
}

// Open opens (or creates) the boltDB file and creates the missing buckets.
func (c *Client) Open(ctx context.Context) error {
	if c.db == nil {
		db, err := bolt.Open(c.Path, 0600, &bolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			return fmt.Errorf(ErrUnableToOpen, err)
		}
		c.db = db
	}

	if err := c.initialize(ctx); err != nil {
		return fmt.Errorf(ErrUnableToInitialize, err)
	}
	return nil
}

// initialize creates Buckets that are missing
func (c *Client) initialize(ctx context.Context) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close the connection to the bolt database
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// get decodes the document stored under key into v; it reports whether the document exists.
func get(b *bolt.Bucket, key string, v interface{}) (bool, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func indexKey(field, value string) []byte {
	return []byte(field + ":" + value)
}

// lookup returns the ID indexed under field:value, or "".
func lookup(idx *bolt.Bucket, field, value string) string {
	if value == "" {
		return ""
	}
	return string(idx.Get(indexKey(field, value)))
}

// reindex moves the index entry of id from field:oldValue to field:newValue.
func reindex(idx *bolt.Bucket, field, oldValue, newValue, id string) error {
	if oldValue == newValue {
		return nil
	}
	if oldValue != "" {
		if err := idx.Delete(indexKey(field, oldValue)); err != nil {
			return err
		}
	}
	return idx.Put(indexKey(field, newValue), []byte(id))
}
