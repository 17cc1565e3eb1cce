package boltrepos

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/lead"
)

// LeadRepository is the bolt implementation of lead.Repository.
type LeadRepository struct {
	client *Client
}

var _ lead.Repository = (*LeadRepository)(nil)

func getLead(tx *bolt.Tx, id string) (lead.Lead, error) {
	var l lead.Lead
	found, err := get(tx.Bucket(leadsBucket), id, &l)
	if err != nil {
		return lead.Lead{}, err
	}
	if !found {
		return lead.Lead{}, lead.ErrNotFound
	}
	return l, nil
}

func (repo *LeadRepository) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(leadIndexBucket)
		if lookup(idx, "email", l.Email) != "" {
			return lead.ErrEmailExists
		}
		if err := put(tx.Bucket(leadsBucket), l.ID, l); err != nil {
			return err
		}
		return idx.Put(indexKey("email", l.Email), []byte(l.ID))
	})
	if err != nil {
		return lead.Lead{}, err
	}
	return l, nil
}

func matchLead(l lead.Lead, filter lead.QueryFilter) bool {
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	if filter.VisaType != "" && l.VisaType != filter.VisaType {
		return false
	}
	if filter.Country != "" && l.DestinationCountry != filter.Country {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(l.Name), search) ||
			strings.Contains(strings.ToLower(l.Email), search) ||
			strings.Contains(strings.ToLower(l.DestinationCountry), search) ||
			strings.Contains(l.Phone, filter.Search)
	}
	return true
}

// compareLeads compares a & b on an ordering field: negative when a < b.
func compareLeads(a, b lead.Lead, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "visaType":
		return strings.Compare(a.VisaType, b.VisaType)
	case "destinationCountry":
		return strings.Compare(a.DestinationCountry, b.DestinationCountry)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

func sortLeads(leads []lead.Lead, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "createdAt", Ascending: false}}
	}
	sort.SliceStable(leads, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareLeads(leads[i], leads[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func (repo *LeadRepository) QueryLeads(ctx context.Context, filter lead.QueryFilter, ordering ...core.DBOrdering) ([]lead.Lead, error) {
	leads := make([]lead.Lead, 0)
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(leadsBucket).ForEach(func(_, data []byte) error {
			var l lead.Lead
			if err := json.Unmarshal(data, &l); err != nil {
				return err
			}
			if matchLead(l, filter) {
				leads = append(leads, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortLeads(leads, ordering)
	return leads, nil
}

func (repo *LeadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	var l lead.Lead
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		var err error
		l, err = getLead(tx, id)
		return err
	})
	return l, err
}

func (repo *LeadRepository) UpdateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		orig, err := getLead(tx, l.ID)
		if err != nil {
			return err
		}

		idx := tx.Bucket(leadIndexBucket)
		if id := lookup(idx, "email", l.Email); id != "" && id != l.ID {
			return lead.ErrEmailExists
		}
		if err = reindex(idx, "email", orig.Email, l.Email, l.ID); err != nil {
			return err
		}
		return put(tx.Bucket(leadsBucket), l.ID, l)
	})
	if err != nil {
		return lead.Lead{}, err
	}
	return l, nil
}

// DeleteLead deletes the lead, its email index entry and its follow-ups in one transaction.
func (repo *LeadRepository) DeleteLead(ctx context.Context, id string) (int, error) {
	var deleted int
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		l, err := getLead(tx, id)
		if err != nil {
			return err
		}

		fb := tx.Bucket(followupsBucket)
		var keys [][]byte
		if err = fb.ForEach(func(k, data []byte) error {
			var doc followupDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			if doc.LeadID == id {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		// keys are collected first: bolt forbids mutating a bucket while iterating it.
		for _, k := range keys {
			if err = fb.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)

		if err = tx.Bucket(leadIndexBucket).Delete(indexKey("email", l.Email)); err != nil {
			return err
		}
		return tx.Bucket(leadsBucket).Delete([]byte(id))
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
