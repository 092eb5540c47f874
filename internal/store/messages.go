package store

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pairchat/internal/convo"
	"pairchat/internal/model"
)

// AppendMessage persists a message and assigns its id and createdAt.
// The timestamp is strictly monotone within the conversation, so the
// key order is the append order. A failed append returns
// ErrPersistence; the message is never silently dropped.
func (s *Store) AppendMessage(sender, receiver, content string, kind model.MessageKind) (model.Message, error) {
	key := convo.Key(sender, receiver)
	msg := model.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		Kind:      kind,
		CreatedAt: s.seq.next(key, time.Now().UnixNano()),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return model.Message{}, err
	}

	logKey := msgKey(key, msg.CreatedAt)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(logKey, payload); err != nil {
			return err
		}
		if err := txn.Set(msgRefKey(msg.ID), logKey); err != nil {
			return err
		}
		// Conversation list index for both parties.
		if err := txn.Set(convIdxKey(sender, receiver), payload); err != nil {
			return err
		}
		return txn.Set(convIdxKey(receiver, sender), payload)
	})
	if err != nil {
		return model.Message{}, persistErr(err)
	}
	return msg, nil
}

// History returns the conversation between a and b ascending by
// createdAt. after is an exclusive createdAt cursor (0 for the full
// log); limit <= 0 means unbounded.
func (s *Store) History(a, b string, after int64, limit int) ([]model.Message, error) {
	prefix := msgPrefix(convo.Key(a, b))
	var msgs []model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg model.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			if msg.CreatedAt <= after {
				continue
			}
			msgs = append(msgs, msg)
			if limit > 0 && len(msgs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return msgs, nil
}

// MarkDelivered flips the delivered flag. Idempotent; a message that
// is already delivered or seen is left alone.
func (s *Store) MarkDelivered(messageID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		refItem, err := txn.Get(msgRefKey(messageID))
		if err != nil {
			return err
		}
		var logKey []byte
		if err := refItem.Value(func(v []byte) error {
			logKey = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}

		var msg model.Message
		if err := getJSON(txn, logKey, &msg); err != nil {
			return err
		}
		if msg.Delivered || msg.Seen {
			return nil
		}
		msg.Delivered = true
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return txn.Set(logKey, payload)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return persistErr(err)
	}
	return nil
}

// MarkSeen flags every message addressed to the viewer in the
// conversation with partner as seen (and therefore delivered). One
// transaction, so a message appended concurrently lands after this
// snapshot and stays unseen until the next read event. Idempotent and
// monotone; returns how many messages changed.
func (s *Store) MarkSeen(viewer, partner string) (int, error) {
	prefix := msgPrefix(convo.Key(viewer, partner))
	changed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg model.Message
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			if msg.Receiver != viewer || msg.Seen {
				continue
			}
			msg.Seen = true
			msg.Delivered = true
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(append([]byte(nil), item.Key()...), payload); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, persistErr(err)
	}
	return changed, nil
}

// Conversations lists every partner the user has exchanged messages
// with, newest first.
func (s *Store) Conversations(userID string) ([]model.ConversationPreview, error) {
	prefix := []byte("conv:" + userID + ":")
	var previews []model.ConversationPreview
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg model.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			partner := msg.Sender
			if partner == userID {
				partner = msg.Receiver
			}
			previews = append(previews, model.ConversationPreview{
				PartnerID:   partner,
				LastMessage: msg.Content,
				LastKind:    msg.Kind,
				LastAt:      msg.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	sort.Slice(previews, func(i, j int) bool { return previews[i].LastAt > previews[j].LastAt })
	return previews, nil
}
