package boltrepos

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
)

// followupDocument is the stored form of a Followup; its lead summary is joined on read.
type followupDocument followup.Followup

func newFollowupDocument(f followup.Followup) followupDocument {
	f.Lead = nil
	return followupDocument(f)
}

// FollowupRepository is the bolt implementation of followup.Repository.
type FollowupRepository struct {
	client *Client
}

var _ followup.Repository = (*FollowupRepository)(nil)

// withLead returns doc as a Followup carrying the summary of its lead.
func withLead(tx *bolt.Tx, doc followupDocument) (followup.Followup, error) {
	f := followup.Followup(doc)
	l, err := getLead(tx, f.LeadID)
	if err == lead.ErrNotFound {
		return f, nil
	}
	if err != nil {
		return followup.Followup{}, err
	}
	f.Lead = &followup.LeadSummary{ID: l.ID, Name: l.Name, Email: l.Email, Phone: l.Phone}
	return f, nil
}

func getFollowup(tx *bolt.Tx, id string) (followupDocument, error) {
	var doc followupDocument
	found, err := get(tx.Bucket(followupsBucket), id, &doc)
	if err != nil {
		return followupDocument{}, err
	}
	if !found {
		return followupDocument{}, followup.ErrNotFound
	}
	return doc, nil
}

func (repo *FollowupRepository) CreateFollowup(ctx context.Context, f followup.Followup) (followup.Followup, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		if _, err := getLead(tx, f.LeadID); err != nil {
			return err
		}
		return put(tx.Bucket(followupsBucket), f.ID, newFollowupDocument(f))
	})
	if err != nil {
		return followup.Followup{}, err
	}
	return f, nil
}

func (repo *FollowupRepository) QueryFollowups(ctx context.Context, filter followup.QueryFilter) ([]followup.Followup, error) {
	followups := make([]followup.Followup, 0)
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(followupsBucket).ForEach(func(_, data []byte) error {
			var doc followupDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			if filter.LeadID != "" && doc.LeadID != filter.LeadID {
				return nil
			}
			f, err := withLead(tx, doc)
			if err != nil {
				return err
			}
			followups = append(followups, f)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(followups, func(i, j int) bool {
		if !followups[i].NextFollowupDate.Equal(followups[j].NextFollowupDate) {
			return followups[i].NextFollowupDate.Before(followups[j].NextFollowupDate)
		}
		return followups[i].CreatedAt.Before(followups[j].CreatedAt)
	})
	return followups, nil
}

func (repo *FollowupRepository) GetFollowup(ctx context.Context, id string) (followup.Followup, error) {
	var f followup.Followup
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		doc, err := getFollowup(tx, id)
		if err != nil {
			return err
		}
		f, err = withLead(tx, doc)
		return err
	})
	return f, err
}

func (repo *FollowupRepository) UpdateFollowup(ctx context.Context, f followup.Followup) (followup.Followup, error) {
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		if _, err := getFollowup(tx, f.ID); err != nil {
			return err
		}
		if _, err := getLead(tx, f.LeadID); err != nil {
			return err
		}
		return put(tx.Bucket(followupsBucket), f.ID, newFollowupDocument(f))
	})
	if err != nil {
		return followup.Followup{}, err
	}
	return f, nil
}

func (repo *FollowupRepository) DeleteFollowup(ctx context.Context, id string) error {
	return repo.client.db.Update(func(tx *bolt.Tx) error {
		if _, err := getFollowup(tx, id); err != nil {
			return err
		}
		return tx.Bucket(followupsBucket).Delete([]byte(id))
	})
}

func (repo *FollowupRepository) UpdateStatusForLead(ctx context.Context, leadID, status string, updatedAt time.Time) (int, error) {
	var modified int
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		fb := tx.Bucket(followupsBucket)
		var docs []followupDocument
		if err := fb.ForEach(func(_, data []byte) error {
			var doc followupDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			if doc.LeadID == leadID {
				docs = append(docs, doc)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, doc := range docs {
			doc.Status = status
			doc.UpdatedAt = updatedAt.UTC()
			if err := put(fb, doc.ID, doc); err != nil {
				return err
			}
		}
		modified = len(docs)
		return nil
	})
	return modified, err
}

func (repo *FollowupRepository) CountFollowups(ctx context.Context) (int, error) {
	var count int
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(followupsBucket).Stats().KeyN
		return nil
	})
	return count, err
}
