package session

// In-memory хранилище: живёт только в пределах процесса. Используется в тестах
// и во встраиваниях, которым не нужна персистентность между запусками.

import "sync"

// MemoryStore хранит сессию в памяти. Потокобезопасен.
type MemoryStore struct {
	mux sync.Mutex
	s   Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load возвращает текущую сессию (нормализованную копию).
func (m *MemoryStore) Load() (Session, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.s.Normalize(), nil
}

// Save заменяет сохранённую сессию целиком.
func (m *MemoryStore) Save(s Session) error {
	valid, err := validateForSave(s)
	if err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.s = valid
	return nil
}

// Clear сбрасывает сессию в пустую.
func (m *MemoryStore) Clear() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.s = Session{}
	return nil
}
