package svcaccounts

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

const accountsOU = "ou=serviceaccounts,dc=example,dc=com"

type fakeDir struct {
	searches map[string][]directory.Entry
	added    map[string]map[string][]string
	modified map[string][]directory.Modification
	deleted  []string
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
	f.added[dn] = attrs
	return nil
}

func (f *fakeDir) ModifyEntry(ctx context.Context, dn string, mods []directory.Modification) error {
	f.modified[dn] = append(f.modified[dn], mods...)
	return nil
}

func (f *fakeDir) DeleteEntry(ctx context.Context, dn string) error {
	f.deleted = append(f.deleted, dn)
	return nil
}

func (f *fakeDir) BindAs(ctx context.Context, dn, password string) error { return nil }
func (f *fakeDir) WhoAmI(ctx context.Context) error                      { return nil }

func accountEntry(uid string, uidNumber int) directory.Entry {
	return directory.Entry{
		DN: fmt.Sprintf("uid=%s,%s", uid, accountsOU),
		Attributes: map[string][]string{
			"uid":       {uid},
			"cn":        {uid},
			"uidNumber": {fmt.Sprint(uidNumber)},
		},
	}
}

func newTestService(dir directory.Client) *Service {
	return NewService(dir, accountsOU, nil, slog.Default())
}

func TestCreateServiceAccount(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(uid=backup-agent)"] = []directory.Entry{accountEntry("backup-agent", 9001)}
	svc := newTestService(dir)

	created, err := svc.Create(context.Background(), CreateParams{
		UID: "backup-agent",
		CN:  "Backup Agent",
	}, "admin")
	require.NoError(t, err)
	require.Equal(t, "backup-agent", created.UID)
	require.NotEmpty(t, created.Secret)

	attrs := dir.added["uid=backup-agent,"+accountsOU]
	require.NotNil(t, attrs)
	// First account in an empty OU starts the dedicated range.
	require.Equal(t, []string{"9000"}, attrs["uidNumber"])
	require.Equal(t, []string{"/srv/backup-agent"}, attrs["homeDirectory"])
	require.Equal(t, []string{"/bin/false"}, attrs["loginShell"])
	require.Equal(t, []string{"Service account"}, attrs["description"])
	require.Equal(t, []string{"Backup Agent"}, attrs["sn"])

	// The stored secret is a hash of the returned plaintext.
	require.Len(t, attrs["userPassword"], 1)
	require.NotEqual(t, created.Secret, attrs["userPassword"][0])
	require.True(t, auth.VerifyPassword(created.Secret, attrs["userPassword"][0]))
}

func TestCreateServiceAccountUIDNumberAboveExisting(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(objectClass=posixAccount)"] = []directory.Entry{
		accountEntry("monitoring", 9007),
	}
	dir.searches["(uid=backup-agent)"] = []directory.Entry{accountEntry("backup-agent", 9008)}
	svc := newTestService(dir)

	_, err := svc.Create(context.Background(), CreateParams{UID: "backup-agent", CN: "Backup"}, "admin")
	require.NoError(t, err)

	attrs := dir.added["uid=backup-agent,"+accountsOU]
	require.Equal(t, []string{"9008"}, attrs["uidNumber"])
}

func TestCreateServiceAccountRejectsBadUID(t *testing.T) {
	svc := newTestService(newFakeDir())
	_, err := svc.Create(context.Background(), CreateParams{UID: "Bad Name", CN: "x"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSecretsDiffer(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.GreaterOrEqual(t, len(a), 32)
}

func TestResetSecret(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	secret, err := svc.ResetSecret(context.Background(), "backup-agent", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	mods := dir.modified["uid=backup-agent,"+accountsOU]
	require.Len(t, mods, 1)
	require.Equal(t, "userPassword", mods[0].Attr)
	require.True(t, auth.VerifyPassword(secret, mods[0].Values[0]))
}

func TestDeleteServiceAccount(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	require.NoError(t, svc.Delete(context.Background(), "backup-agent", "admin"))
	require.Equal(t, []string{"uid=backup-agent," + accountsOU}, dir.deleted)
}
