package users

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]User
	roles  map[int64]map[int64]bool
	names  map[int64]string
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		rows:  map[int64]User{},
		roles: map[int64]map[int64]bool{},
		names: map[int64]string{1: "admin", 2: "sales"},
	}
}

func (m *memoryRepo) List(context.Context, ListFilter) ([]User, int, error) {
	out := make([]User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Create(_ context.Context, u User) (User, error) {
	for _, existing := range m.rows {
		if existing.Email == u.Email {
			return User{}, ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.rows[u.ID] = u
	return u, nil
}

func (m *memoryRepo) Update(_ context.Context, u User) (User, error) {
	if _, ok := m.rows[u.ID]; !ok {
		return User{}, ErrNotFound
	}
	m.rows[u.ID] = u
	return u, nil
}

func (m *memoryRepo) SetPassword(_ context.Context, id int64, hash string) error {
	u, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.rows[id] = u
	return nil
}

func (m *memoryRepo) AssignRole(_ context.Context, userID, roleID int64) error {
	if _, ok := m.names[roleID]; !ok {
		return ErrRoleNotFound
	}
	if m.roles[userID] == nil {
		m.roles[userID] = map[int64]bool{}
	}
	m.roles[userID][roleID] = true
	return nil
}

func (m *memoryRepo) RemoveRole(_ context.Context, userID, roleID int64) error {
	if !m.roles[userID][roleID] {
		return ErrRoleNotFound
	}
	delete(m.roles[userID], roleID)
	return nil
}

func (m *memoryRepo) Roles(_ context.Context, userID int64) ([]RoleRef, error) {
	out := []RoleRef{}
	for id := range m.roles[userID] {
		out = append(out, RoleRef{ID: id, Name: m.names[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type auditTrail []shared.AuditLog

func (a *auditTrail) Record(_ context.Context, log shared.AuditLog) error {
	*a = append(*a, log)
	return nil
}

func newService(t *testing.T) (*Service, *memoryRepo, *auditTrail) {
	t.Helper()
	repo := newMemoryRepo()
	trail := &auditTrail{}
	return NewService(repo, trail, nil, bcrypt.MinCost), repo, trail
}

func TestCreateHashesPassword(t *testing.T) {
	svc, repo, trail := newService(t)

	user, err := svc.Create(context.Background(), CreateInput{Email: " Ana@Example.com ", Name: "Ana", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)
	require.True(t, user.IsActive)
	require.NotEqual(t, "correct horse", repo.rows[user.ID].PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.rows[user.ID].PasswordHash), []byte("correct horse")))
	require.Len(t, *trail, 1)
	require.Equal(t, "USER_CREATED", (*trail)[0].Action)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]CreateInput{
		"bad email":      {Email: "nope", Name: "A", Password: "12345678"},
		"missing name":   {Email: "a@b.co", Name: " ", Password: "12345678"},
		"short password": {Email: "a@b.co", Name: "A", Password: "1234567"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "a@b.co", Name: "A", Password: "12345678"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Email: "A@B.CO", Name: "B", Password: "12345678"})
	require.ErrorIs(t, err, ErrEmailTaken)
	require.Equal(t, 409, httpx.StatusFor(err))
}

func TestUpdateKeepsUnsetFields(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateInput{Email: "a@b.co", Name: "A", Password: "12345678"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, user.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "A", updated.Name)
	require.False(t, updated.IsActive)

	blank := ""
	_, err = svc.Update(ctx, user.ID, UpdateInput{Name: &blank})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, 99, UpdateInput{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangeOwnPasswordNeedsCurrent(t *testing.T) {
	svc, repo, _ := newService(t)
	user, err := svc.Create(context.Background(), CreateInput{Email: "a@b.co", Name: "A", Password: "first-pass"})
	require.NoError(t, err)
	self := shared.ContextWithActor(context.Background(), shared.Actor{UserID: user.ID})

	err = svc.ChangePassword(self, user.ID, PasswordChange{Current: "wrong-pass", New: "second-pass"})
	require.ErrorIs(t, err, ErrWrongPassword)

	require.NoError(t, svc.ChangePassword(self, user.ID, PasswordChange{Current: "first-pass", New: "second-pass"}))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.rows[user.ID].PasswordHash), []byte("second-pass")))
}

func TestAdminResetSkipsCurrent(t *testing.T) {
	svc, repo, _ := newService(t)
	user, err := svc.Create(context.Background(), CreateInput{Email: "a@b.co", Name: "A", Password: "first-pass"})
	require.NoError(t, err)
	admin := shared.ContextWithActor(context.Background(), shared.Actor{UserID: 500})

	err = svc.ChangePassword(admin, user.ID, PasswordChange{New: "short"})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ChangePassword(admin, user.ID, PasswordChange{New: "reset-pass"}))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.rows[user.ID].PasswordHash), []byte("reset-pass")))
}

func TestRoleAssignment(t *testing.T) {
	svc, _, trail := newService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateInput{Email: "a@b.co", Name: "A", Password: "12345678"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(ctx, user.ID, 2))
	require.NoError(t, svc.AssignRole(ctx, user.ID, 1))
	require.ErrorIs(t, svc.AssignRole(ctx, user.ID, 7), ErrRoleNotFound)

	roles, err := svc.Roles(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []RoleRef{{ID: 1, Name: "admin"}, {ID: 2, Name: "sales"}}, roles)

	require.NoError(t, svc.RemoveRole(ctx, user.ID, 1))
	require.ErrorIs(t, svc.RemoveRole(ctx, user.ID, 1), ErrRoleNotFound)
	roles, err = svc.Roles(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)

	_, err = svc.Roles(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "USER_ROLE_REMOVED", (*trail)[len(*trail)-1].Action)
}
