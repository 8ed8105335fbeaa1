package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

const (
	profilePrefix = "profile/"
	chatPrefix    = "chat/"
	messagePrefix = "message/"
)

// Store is a handle over the embedded datastore. Open it once, pass it
// where it is needed, close it on shutdown.
type Store struct {
	db *badger.DB
}

type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string
	// InMemory skips disk persistence. Useful for tests.
	InMemory bool
}

func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open datastore: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertProfile(profile Profile) (Profile, error) {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.Preferences.SchemaVersion == 0 {
		profile.Preferences.SchemaVersion = PreferencesSchemaVersion
	}

	if err := s.put(profilePrefix+profile.ID, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (s *Store) Profile(id string) (Profile, error) {
	var profile Profile
	if err := s.get(profilePrefix+id, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (s *Store) DeleteProfile(id string) error {
	return s.delete(profilePrefix + id)
}

func (s *Store) UpsertChat(chat Chat) (Chat, error) {
	now := time.Now().UTC()
	if chat.ID == "" {
		chat.ID = uuid.NewString()
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now

	if err := s.put(chatPrefix+chat.ID, chat); err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func (s *Store) Chat(id string) (Chat, error) {
	var chat Chat
	if err := s.get(chatPrefix+id, &chat); err != nil {
		return Chat{}, err
	}
	return chat, nil
}

// DeleteChat removes the chat and every message appended to it.
func (s *Store) DeleteChat(id string) error {
	if err := s.delete(chatPrefix + id); err != nil {
		return err
	}

	prefix := []byte(messagePrefix + id + "/")
	return s.db.Update(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendMessage stores a finalized message at the end of its chat's
// sequence and returns it with its assigned identity.
func (s *Store) AppendMessage(message Message) (Message, error) {
	if message.ChatID == "" {
		return Message{}, errors.New("message chat id is required")
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	// Keys sort by append time so a prefix scan yields messages in order.
	key := fmt.Sprintf("%s%s/%020d-%s", messagePrefix, message.ChatID, message.CreatedAt.UnixNano(), message.ID)
	if err := s.put(key, message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// Messages returns every message of the chat in append order.
func (s *Store) Messages(chatID string) ([]Message, error) {
	prefix := []byte(messagePrefix + chatID + "/")

	var messages []Message
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var message Message
			if err := json.Unmarshal(value, &message); err != nil {
				return fmt.Errorf("failed to decode message record: %w", err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) put(key string, record any) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) get(key string, record any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, record)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
