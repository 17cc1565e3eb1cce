package boltrepos

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/visalms/lms/core/user"
)

// userDocument is the stored form of a User; the password hash is hidden from the User's JSON.
type userDocument struct {
	user.User
	PasswordHash []byte `json:"passwordHash"`
}

func newUserDocument(usr user.User) userDocument {
	return userDocument{User: usr, PasswordHash: usr.PasswordHash}
}

func (d userDocument) toUser() user.User {
	usr := d.User
	usr.PasswordHash = d.PasswordHash
	return usr
}

// UserRepository is the bolt implementation of user.Repository.
type UserRepository struct {
	client *Client
}

var _ user.Repository = (*UserRepository)(nil)

func getUser(tx *bolt.Tx, id string) (user.User, error) {
	var doc userDocument
	found, err := get(tx.Bucket(usersBucket), id, &doc)
	if err != nil {
		return user.User{}, err
	}
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return doc.toUser(), nil
}

// userTaken reports whether username or email is indexed to a user other than except.
func userTaken(idx *bolt.Bucket, username, email string, except ...string) bool {
	isExcluded := func(id string) bool {
		for _, ex := range except {
			if id == ex {
				return true
			}
		}
		return false
	}
	if id := lookup(idx, "username", username); id != "" && !isExcluded(id) {
		return true
	}
	if id := lookup(idx, "email", email); id != "" && !isExcluded(id) {
		return true
	}
	return false
}

func (repo *UserRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	except := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		except = append(except, usr.ID)
	}
	return repo.client.db.View(func(tx *bolt.Tx) error {
		if userTaken(tx.Bucket(userIndexBucket), username, email, except...) {
			return user.ErrUserExists
		}
		return nil
	})
}

func insertUser(tx *bolt.Tx, usr user.User) error {
	idx := tx.Bucket(userIndexBucket)
	if userTaken(idx, usr.Username, usr.Email) {
		return user.ErrUserExists
	}
	if err := put(tx.Bucket(usersBucket), usr.ID, newUserDocument(usr)); err != nil {
		return err
	}
	if err := idx.Put(indexKey("username", usr.Username), []byte(usr.ID)); err != nil {
		return err
	}
	return idx.Put(indexKey("email", usr.Email), []byte(usr.ID))
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		return insertUser(tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// CreateFirstUser relies on bolt serializing write transactions.
func (repo *UserRepository) CreateFirstUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		if k, _ := tx.Bucket(usersBucket).Cursor().First(); k != nil {
			return user.ErrSetupDone
		}
		return insertUser(tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *UserRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, data []byte) error {
			var doc userDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			if filter.IsActive == nil || doc.IsActive == *filter.IsActive {
				users = append(users, doc.toUser())
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (repo *UserRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var usr user.User
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		id := filter.ID
		if id == "" {
			idx := tx.Bucket(userIndexBucket)
			if id = lookup(idx, "username", filter.UsernameOrEmail); id == "" {
				id = lookup(idx, "email", filter.UsernameOrEmail)
			}
		}
		if id == "" {
			return user.ErrNotFound
		}

		var err error
		usr, err = getUser(tx, id)
		return err
	})
	return usr, err
}

func (repo *UserRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.client.db.Update(func(tx *bolt.Tx) error {
		orig, err := getUser(tx, usr.ID)
		if err != nil {
			return err
		}

		idx := tx.Bucket(userIndexBucket)
		if userTaken(idx, usr.Username, usr.Email, usr.ID) {
			return user.ErrUserExists
		}
		if err = reindex(idx, "username", orig.Username, usr.Username, usr.ID); err != nil {
			return err
		}
		if err = reindex(idx, "email", orig.Email, usr.Email, usr.ID); err != nil {
			return err
		}
		return put(tx.Bucket(usersBucket), usr.ID, newUserDocument(usr))
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := repo.client.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(usersBucket).Stats().KeyN
		return nil
	})
	return count, err
}
