package session

// Хранилище сессии поверх bbolt. Сессия лежит одним JSON-значением в бакете
// sessionBucket: транзакционность bbolt даёт атомарную замену без ручного
// temp+rename, а файл переживает конкурентный доступ из нескольких процессов
// (второй процесс честно упрётся в таймаут открытия).

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/storage"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"
)

const (
	sessionBucketName             = "session"
	sessionKeyName                = "v1"
	dbOpenTimeout                 = time.Second
	dbFileMode        os.FileMode = 0o600
)

var (
	sessionBucketBytes = []byte(sessionBucketName)
	sessionKeyBytes    = []byte(sessionKeyName)
)

// BoltStore хранит сессию в bbolt-базе. Потокобезопасность обеспечивает
// сама bbolt (одна write-транзакция за раз).
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore открывает (или создаёт) bbolt-базу по указанному пути.
// Закрывать базу обязан вызывающий код через Close.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		return nil, errors.New("session: db path is empty")
	}
	if err := storage.EnsureDir(path); err != nil {
		return nil, errors.Wrap(err, "session: ensure dir")
	}

	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "session: open db")
	}
	return &BoltStore{db: db}, nil
}

// Close закрывает файл базы данных.
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load читает сессию из базы. Отсутствие бакета/ключа — пустая сессия.
// Повреждённое значение трактуется как отсутствие сессии.
func (b *BoltStore) Load() (Session, error) {
	if b == nil || b.db == nil {
		return Session{}, errors.New("nil session store is invalid")
	}

	var data []byte
	if err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionBucketBytes)
		if bucket == nil {
			return nil
		}
		value := bucket.Get(sessionKeyBytes)
		if len(value) == 0 {
			return nil
		}
		data = append(data, value...)
		return nil
	}); err != nil {
		return Session{}, errors.Wrap(err, "load session")
	}

	if len(data) == 0 {
		return Session{}, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, nil
	}
	return s.Normalize(), nil
}

// Save записывает сессию одной write-транзакцией.
func (b *BoltStore) Save(s Session) error {
	if b == nil || b.db == nil {
		return errors.New("nil session store is invalid")
	}
	valid, err := validateForSave(s)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(valid)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	if err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, bucketErr := tx.CreateBucketIfNotExists(sessionBucketBytes)
		if bucketErr != nil {
			return bucketErr
		}
		return bucket.Put(sessionKeyBytes, payload)
	}); err != nil {
		return errors.Wrap(err, "store session")
	}
	return nil
}

// Clear удаляет сохранённую сессию. Отсутствие бакета — no-op.
func (b *BoltStore) Clear() error {
	if b == nil || b.db == nil {
		return errors.New("nil session store is invalid")
	}
	if err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionBucketBytes)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(sessionKeyBytes)
	}); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
