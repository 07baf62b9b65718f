package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct{ users []User }

func (m *memRepo) LoadAll() ([]User, error) { return append([]User{}, m.users...), nil }
func (m *memRepo) Upsert(u User) error {
	for i, x := range m.users {
		if x.ID == u.ID {
			m.users[i] = u
			return nil
		}
	}
	m.users = append(m.users, u)
	return nil
}
func (m *memRepo) Remove(id int64) error {
	out := make([]User, 0, len(m.users))
	for _, x := range m.users {
		if x.ID != id {
			out = append(out, x)
		}
	}
	m.users = out
	return nil
}

func TestServiceBasic(t *testing.T) {
	repo := &memRepo{users: []User{{ID: 10, Username: "alice"}}}
	svc, err := NewWithRepo(repo, []int64{20})
	require.NoError(t, err)

	assert.True(t, svc.Restricted())
	assert.True(t, svc.IsAllowed(10), "repo preload not effective")
	assert.True(t, svc.IsAllowed(20), "initial env list not merged")
	assert.False(t, svc.IsAllowed(30))

	require.NoError(t, svc.Upsert(User{ID: 30, Username: "bob"}))
	assert.True(t, svc.IsAllowed(30))

	require.NoError(t, svc.Remove(10))
	assert.False(t, svc.IsAllowed(10))
	assert.Len(t, repo.users, 1)

	assert.Equal(t, []User{{ID: 20}, {ID: 30, Username: "bob"}}, svc.List())
}

func TestEmptyAllowlistAdmitsEveryone(t *testing.T) {
	svc, err := NewWithRepo(nil, nil)
	require.NoError(t, err)
	assert.False(t, svc.Restricted())
	assert.True(t, svc.IsAllowed(12345))
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "allowlist.json")
	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	users, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, repo.Upsert(User{ID: 1, Username: "a"}))
	require.NoError(t, repo.Upsert(User{ID: 2}))
	require.NoError(t, repo.Upsert(User{ID: 1, Username: "renamed"}))
	require.NoError(t, repo.Remove(2))

	users, err = repo.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: 1, Username: "renamed"}}, users)

	svc, err := NewWithRepo(repo, nil)
	require.NoError(t, err)
	assert.True(t, svc.IsAllowed(1))
	assert.False(t, svc.IsAllowed(2))
}

func TestFileRepository_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	_, err = NewWithRepo(repo, nil)
	assert.Error(t, err)
}
