package users

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

const peopleOU = "ou=people,dc=example,dc=com"

type fakeDir struct {
	searches map[string][]directory.Entry
	added    map[string]map[string][]string
	modified map[string][]directory.Modification
	deleted  []string
	addErr   error
	modErr   error
	delErr   error
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		searches: map[string][]directory.Entry{},
		added:    map[string]map[string][]string{},
		modified: map[string][]directory.Modification{},
	}
}

func (f *fakeDir) Search(ctx context.Context, baseDN, filter string, attrs []string) ([]directory.Entry, error) {
	return f.searches[filter], nil
}

func (f *fakeDir) GetEntry(ctx context.Context, dn string, attrs []string) (directory.Entry, error) {
	return directory.Entry{}, shared.ErrNotFound
}

func (f *fakeDir) AddEntry(ctx context.Context, dn string, attrs map[string][]string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[dn] = attrs
	return nil
}

func (f *fakeDir) ModifyEntry(ctx context.Context, dn string, mods []directory.Modification) error {
	if f.modErr != nil {
		return f.modErr
	}
	f.modified[dn] = append(f.modified[dn], mods...)
	return nil
}

func (f *fakeDir) DeleteEntry(ctx context.Context, dn string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, dn)
	return nil
}

func (f *fakeDir) BindAs(ctx context.Context, dn, password string) error { return nil }
func (f *fakeDir) WhoAmI(ctx context.Context) error                      { return nil }

func userEntry(uid string, uidNumber int) directory.Entry {
	return directory.Entry{
		DN: fmt.Sprintf("uid=%s,%s", uid, peopleOU),
		Attributes: map[string][]string{
			"uid":       {uid},
			"cn":        {"Test " + uid},
			"uidNumber": {fmt.Sprint(uidNumber)},
			"gidNumber": {fmt.Sprint(uidNumber)},
		},
	}
}

func newTestService(dir directory.Client) *Service {
	policy := auth.PasswordPolicy{MinLength: 8}
	return NewService(dir, peopleOU, policy, nil, slog.Default())
}

func TestListUsers(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(objectClass=posixAccount)"] = []directory.Entry{
		userEntry("alice", 1001),
		userEntry("bob", 1002),
	}
	svc := newTestService(dir)

	users, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].UID)
	require.Equal(t, 1001, users[0].UIDNumber)
}

func TestListUsersEscapesSearch(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	// The injection attempt must be escaped into a harmless substring, so
	// the scripted filter for the raw text never matches.
	users, err := svc.List(context.Background(), "*)(uid=*")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestGetUserNotFound(t *testing.T) {
	svc := newTestService(newFakeDir())
	_, err := svc.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateUserDefaults(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(objectClass=posixAccount)"] = []directory.Entry{
		userEntry("alice", 1042),
	}
	dir.searches["(uid=bob)"] = []directory.Entry{userEntry("bob", 1043)}
	svc := newTestService(dir)

	user, err := svc.Create(context.Background(), CreateParams{
		UID:      "bob",
		CN:       "Bob Jones",
		Password: "password123",
	}, "admin")
	require.NoError(t, err)
	require.Equal(t, "bob", user.UID)

	dn := "uid=bob," + peopleOU
	attrs := dir.added[dn]
	require.NotNil(t, attrs)
	require.Equal(t, []string{"1043"}, attrs["uidNumber"])
	require.Equal(t, []string{"1043"}, attrs["gidNumber"])
	require.Equal(t, []string{"/home/bob"}, attrs["homeDirectory"])
	require.Equal(t, []string{"/bin/bash"}, attrs["loginShell"])
	require.Equal(t, []string{"Bob Jones"}, attrs["sn"])
	require.Contains(t, attrs["objectClass"], "posixAccount")

	// The stored password is hashed, never plaintext.
	require.Len(t, attrs["userPassword"], 1)
	require.NotEqual(t, "password123", attrs["userPassword"][0])
	require.True(t, auth.VerifyPassword("password123", attrs["userPassword"][0]))
}

func TestCreateUserRejectsBadUID(t *testing.T) {
	svc := newTestService(newFakeDir())

	for _, uid := range []string{"", "1abc", "Bob", "bad uid", "uid=x,ou=y"} {
		_, err := svc.Create(context.Background(), CreateParams{
			UID:      uid,
			CN:       "x",
			Password: "password123",
		}, "admin")
		require.ErrorIs(t, err, shared.ErrValidation, uid)
	}
}

func TestCreateUserRejectsWeakPassword(t *testing.T) {
	svc := newTestService(newFakeDir())
	_, err := svc.Create(context.Background(), CreateParams{
		UID:      "bob",
		CN:       "Bob",
		Password: "short",
	}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateUserReplacesOnlyProvided(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(uid=alice)"] = []directory.Entry{userEntry("alice", 1001)}
	svc := newTestService(dir)

	mail := "alice@example.com"
	_, err := svc.Update(context.Background(), "alice", UpdateParams{Mail: &mail}, "admin")
	require.NoError(t, err)

	mods := dir.modified["uid=alice,"+peopleOU]
	require.Len(t, mods, 1)
	require.Equal(t, "mail", mods[0].Attr)
	require.Equal(t, []string{mail}, mods[0].Values)
}

func TestUpdateUserNoChangesIsARead(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(uid=alice)"] = []directory.Entry{userEntry("alice", 1001)}
	svc := newTestService(dir)

	user, err := svc.Update(context.Background(), "alice", UpdateParams{}, "admin")
	require.NoError(t, err)
	require.Equal(t, "alice", user.UID)
	require.Empty(t, dir.modified)
}

func TestDeleteUser(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	require.NoError(t, svc.Delete(context.Background(), "alice", "admin"))
	require.Equal(t, []string{"uid=alice," + peopleOU}, dir.deleted)
}

func TestResetPassword(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	require.NoError(t, svc.ResetPassword(context.Background(), "alice", "newpassword1", "admin"))

	mods := dir.modified["uid=alice,"+peopleOU]
	require.Len(t, mods, 1)
	require.Equal(t, "userPassword", mods[0].Attr)
	require.True(t, auth.VerifyPassword("newpassword1", mods[0].Values[0]))

	require.ErrorIs(t, svc.ResetPassword(context.Background(), "alice", "short", "admin"), shared.ErrValidation)
}
