package store

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pairchat/internal/model"
)

const searchLimit = 20

// CreateUser registers a new identity. Usernames are unique,
// case-insensitively; a clash fails with ErrUsernameTaken and leaves
// the original account untouched.
func (s *Store) CreateUser(username, passwordHash string, nowMillis int64) (model.User, error) {
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    nowMillis,
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return model.User{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		nameKey := userNameKey(username)
		_, err := txn.Get(nameKey)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(nameKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.ID), payload)
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return model.User{}, ErrUsernameTaken
		}
		return model.User{}, persistErr(err)
	}
	return user, nil
}

func (s *Store) UserByID(id string) (model.User, error) {
	var user model.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userIDKey(id), &user)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, persistErr(err)
	}
	return user, nil
}

func (s *Store) UserByName(username string) (model.User, error) {
	var user model.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userNameKey(username))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(v []byte) error {
			id = string(v)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userIDKey(id), &user)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, persistErr(err)
	}
	return user, nil
}

// SearchUsers returns up to 20 users whose name contains the query,
// case-insensitively, excluding the requester. Advisory only; not on
// the delivery path.
func (s *Store) SearchUsers(requesterID, query string) ([]model.User, error) {
	needle := strings.ToLower(query)
	var users []model.User
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte("user:id:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user model.User
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &user)
			}); err != nil {
				return err
			}
			if user.ID == requesterID {
				continue
			}
			if !strings.Contains(strings.ToLower(user.Username), needle) {
				continue
			}
			users = append(users, user)
			if len(users) >= searchLimit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Contacts lists every other known user, sorted by name.
func (s *Store) Contacts(requesterID string) ([]model.User, error) {
	var users []model.User
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte("user:id:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user model.User
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &user)
			}); err != nil {
				return err
			}
			if user.ID == requesterID {
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(v []byte) error {
		return json.Unmarshal(v, out)
	})
}
