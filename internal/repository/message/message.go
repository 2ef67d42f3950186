// Package message persists the local message log in BadgerDB.
//
// Records live under "msg:{conversationId}:{unixNano padded to 19}:{id}" so a
// prefix scan returns a conversation in chronological order. A secondary
// "id:{id}" entry points at the primary key and lets a status change
// overwrite the record in place.
package message

import (
	"encoding/json"
	"fmt"
	"sort"

	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"github.com/dgraph-io/badger/v4"
)

type (
	Repo struct {
		db *badger.DB
	}
)

func NewRepo(db *badger.DB) *Repo {
	return &Repo{db: db}
}

func recordKey(rec *model.MessageRecord) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", rec.ConversationID, rec.Timestamp.UnixNano(), rec.ID))
}

func indexKey(id string) []byte {
	return []byte("id:" + id)
}

func (r *Repo) Save(rec *model.MessageRecord) error {
	return r.SaveAll([]*model.MessageRecord{rec})
}

// SaveAll writes every record in one transaction.
func (r *Repo) SaveAll(recs []*model.MessageRecord) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := save(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func save(txn *badger.Txn, rec *model.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := recordKey(rec)

	item, err := txn.Get(indexKey(rec.ID))
	switch {
	case err == nil:
		prev, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(prev) != string(key) {
			if err := txn.Delete(prev); err != nil {
				return err
			}
		}
	case err != badger.ErrKeyNotFound:
		return err
	}

	if err := txn.Set(key, data); err != nil {
		return err
	}
	return txn.Set(indexKey(rec.ID), key)
}

func (r *Repo) Get(id string) (*model.MessageRecord, error) {
	var rec *model.MessageRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = &model.MessageRecord{}
			return json.Unmarshal(val, rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("message %s: %w", id, errs.ErrNotFound)
	}
	return rec, err
}

// List returns every record ordered by timestamp, then id.
func (r *Repo) List() ([]*model.MessageRecord, error) {
	recs, err := r.scan([]byte("msg:"), "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

// ListForConversation includes deleted records; hiding them is up to the caller.
func (r *Repo) ListForConversation(conversationID string) ([]*model.MessageRecord, error) {
	return r.scan([]byte("msg:"+conversationID+":"), conversationID)
}

func (r *Repo) scan(prefix []byte, conversationID string) ([]*model.MessageRecord, error) {
	var res []*model.MessageRecord
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec model.MessageRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			// Conversation ids may contain ':' so the prefix alone can overmatch.
			if conversationID != "" && rec.ConversationID != conversationID {
				continue
			}
			res = append(res, &rec)
		}
		return nil
	})
	return res, err
}

// DeleteConversation removes every record of the conversation and reports how many.
func (r *Repo) DeleteConversation(conversationID string) (int, error) {
	recs, err := r.ListForConversation(conversationID)
	if err != nil {
		return 0, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := txn.Delete(recordKey(rec)); err != nil {
				return err
			}
			if err := txn.Delete(indexKey(rec.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
