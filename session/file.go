package session

// Файловое хранилище сессии: JSON-файл с атомарной записью.
// Недопустимы частичные состояния на диске, поэтому запись идёт через
// storage.AtomicWriteFile (temp + fsync + rename). Доступ к файловой системе
// сериализуется мьютексом.

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/storage"

	"github.com/go-faster/errors"
)

// FileStore хранит сессию в JSON-файле по пути Path.
// Потокобезопасен: операции Load/Save/Clear защищены мьютексом.
type FileStore struct {
	Path string
	mux  sync.Mutex
}

// Компиляторная проверка соответствия интерфейсу Store.
var _ Store = (*FileStore)(nil)

// NewFileStore создаёт файловое хранилище по указанному пути.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: file path is empty")
	}
	return &FileStore{Path: path}, nil
}

// Load читает сессию с диска. Отсутствие файла — пустая сессия, не ошибка.
// Повреждённый JSON считается отсутствием сессии: лучше заставить пользователя
// войти заново, чем работать с мусором.
func (f *FileStore) Load() (Session, error) {
	if f == nil {
		return Session{}, errors.New("nil session store is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	var s Session
	err := storage.ReadJSON(f.Path, &s)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Session{}, nil
	case isJSONDecodeError(err):
		// Файл существует, но не читается как JSON — трактуем как пустую сессию.
		return Session{}, nil
	case err != nil:
		return Session{}, errors.Wrap(err, "load session")
	}
	return s.Normalize(), nil
}

// Save атомарно сохраняет сессию на диск.
func (f *FileStore) Save(s Session) error {
	if f == nil {
		return errors.New("nil session store is invalid")
	}
	valid, err := validateForSave(s)
	if err != nil {
		return err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := storage.WriteJSONAtomic(f.Path, valid); err != nil {
		return errors.Wrap(err, "store session")
	}
	return nil
}

// Clear удаляет файл сессии. Отсутствие файла — не ошибка.
func (f *FileStore) Clear() error {
	if f == nil {
		return errors.New("nil session store is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "clear session")
	}
	return nil
}

// isJSONDecodeError распознаёт ошибки разбора JSON (синтаксис или тип).
func isJSONDecodeError(err error) bool {
	if err == nil {
		return false
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr)
}
