package session_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/puzzlefixyt-crypto/deeptracex/session"

	"github.com/go-faster/errors"
)

func TestSessionNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   session.Session
		want session.Session
	}{
		{
			name: "полная сессия остаётся как есть",
			in:   session.Session{Username: "alice", Token: "tok-1", Credits: 7},
			want: session.Session{Username: "alice", Token: "tok-1", Credits: 7},
		},
		{
			name: "пробелы триммируются",
			in:   session.Session{Username: "  alice ", Token: " tok-1\n", Credits: 3},
			want: session.Session{Username: "alice", Token: "tok-1", Credits: 3},
		},
		{
			name: "username без token обнуляется",
			in:   session.Session{Username: "alice"},
			want: session.Session{},
		},
		{
			name: "token без username обнуляется",
			in:   session.Session{Token: "tok-1", Credits: 5},
			want: session.Session{},
		},
		{
			name: "отрицательные кредиты приводятся к нулю",
			in:   session.Session{Username: "alice", Token: "tok-1", Credits: -4},
			want: session.Session{Username: "alice", Token: "tok-1", Credits: 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.in.Normalize()
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

// storeFactories перечисляет реализации Store, проверяемые общим контрактным тестом.
func storeFactories(t *testing.T) map[string]func(t *testing.T) session.Store {
	t.Helper()
	return map[string]func(t *testing.T) session.Store{
		"file": func(t *testing.T) session.Store {
			st, err := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return st
		},
		"bolt": func(t *testing.T) session.Store {
			st, err := session.NewBoltStore(filepath.Join(t.TempDir(), "session.bbolt"))
			if err != nil {
				t.Fatalf("NewBoltStore: %v", err)
			}
			t.Cleanup(func() { _ = st.Close() })
			return st
		},
		"memory": func(t *testing.T) session.Store {
			return session.NewMemoryStore()
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := factory(t)

			// Пустое хранилище отдаёт пустую сессию без ошибки.
			got, err := st.Load()
			if err != nil {
				t.Fatalf("Load on empty store: %v", err)
			}
			if !got.IsZero() {
				t.Fatalf("Load on empty store = %+v, want zero", got)
			}

			want := session.Session{Username: "bob_99", Token: "tok-abc", Credits: 10}
			if err := st.Save(want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err = st.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Load = %+v, want %+v", got, want)
			}

			// Save заменяет состояние целиком.
			want.Credits = 9
			if err := st.Save(want); err != nil {
				t.Fatalf("Save update: %v", err)
			}
			got, err = st.Load()
			if err != nil {
				t.Fatalf("Load after update: %v", err)
			}
			if got.Credits != 9 {
				t.Fatalf("Credits after update = %d, want 9", got.Credits)
			}
		})
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := factory(t)

			if err := st.Save(session.Session{Username: "carol", Token: "tok-c", Credits: 1}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := st.Clear(); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			// Повторный Clear — no-op.
			if err := st.Clear(); err != nil {
				t.Fatalf("second Clear: %v", err)
			}

			got, err := st.Load()
			if err != nil {
				t.Fatalf("Load after Clear: %v", err)
			}
			if !got.IsZero() {
				t.Fatalf("Load after Clear = %+v, want zero", got)
			}
		})
	}
}

func TestStoreRejectsHalfSession(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := factory(t)

			err := st.Save(session.Session{Username: "dave"})
			if !errors.Is(err, session.ErrIncomplete) {
				t.Fatalf("Save(username only) err = %v, want ErrIncomplete", err)
			}
			err = st.Save(session.Session{Token: "tok-d"})
			if !errors.Is(err, session.ErrIncomplete) {
				t.Fatalf("Save(token only) err = %v, want ErrIncomplete", err)
			}
		})
	}
}

func TestFileStoreCorruptFileTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	st, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := st.Load()
	if err != nil {
		t.Fatalf("Load corrupt: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("Load corrupt = %+v, want zero", got)
	}
}

func TestFileStoreHalfSessionOnDiskTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"dtx_username":"eve","dtx_token":""}`), 0o600); err != nil {
		t.Fatalf("write half session: %v", err)
	}

	st, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("Load half session = %+v, want zero", got)
	}
}
