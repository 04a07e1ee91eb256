package groups

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

const groupsOU = "ou=groups,dc=example,dc=com"

type fakeDir struct {
	searches map[string][]directory.Entry
	added    map[string]map[string][]string
	modified map[string][]directory.Modification
	deleted  []string
	modErr   error
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
	if f.modErr != nil {
		return f.modErr
	}
	f.modified[dn] = append(f.modified[dn], mods...)
	return nil
}

func (f *fakeDir) DeleteEntry(ctx context.Context, dn string) error {
	f.deleted = append(f.deleted, dn)
	return nil
}

func (f *fakeDir) BindAs(ctx context.Context, dn, password string) error { return nil }
func (f *fakeDir) WhoAmI(ctx context.Context) error                      { return nil }

func groupEntry(cn string, gid int, members ...string) directory.Entry {
	return directory.Entry{
		DN: fmt.Sprintf("cn=%s,%s", cn, groupsOU),
		Attributes: map[string][]string{
			"cn":        {cn},
			"gidNumber": {fmt.Sprint(gid)},
			"memberUid": members,
		},
	}
}

func newTestService(dir directory.Client) *Service {
	return NewService(dir, groupsOU, nil, slog.Default())
}

func TestListGroups(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(objectClass=posixGroup)"] = []directory.Entry{
		groupEntry("developers", 2001, "alice", "bob"),
		groupEntry("ops", 2002),
	}
	svc := newTestService(dir)

	groups, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, []string{"alice", "bob"}, groups[0].MemberUID)
	require.Empty(t, groups[1].MemberUID)
	require.NotNil(t, groups[1].MemberUID)
}

func TestCreateGroupAssignsNextGID(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(objectClass=posixGroup)"] = []directory.Entry{
		groupEntry("developers", 2041),
	}
	dir.searches["(cn=ops)"] = []directory.Entry{groupEntry("ops", 2042)}
	svc := newTestService(dir)

	group, err := svc.Create(context.Background(), CreateParams{CN: "ops"}, "admin")
	require.NoError(t, err)
	require.Equal(t, "ops", group.CN)

	attrs := dir.added["cn=ops,"+groupsOU]
	require.NotNil(t, attrs)
	require.Equal(t, []string{"2042"}, attrs["gidNumber"])
	require.Equal(t, []string{"posixGroup", "top"}, attrs["objectClass"])
}

func TestCreateGroupRejectsBadName(t *testing.T) {
	svc := newTestService(newFakeDir())
	for _, cn := range []string{"", "2fast", "Staff", "has space"} {
		_, err := svc.Create(context.Background(), CreateParams{CN: cn}, "admin")
		require.ErrorIs(t, err, shared.ErrValidation, cn)
	}
}

func TestAddMember(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(cn=developers)"] = []directory.Entry{
		groupEntry("developers", 2001, "alice", "bob"),
	}
	svc := newTestService(dir)

	group, err := svc.AddMember(context.Background(), "developers", "bob", "admin")
	require.NoError(t, err)
	require.Contains(t, group.MemberUID, "bob")

	mods := dir.modified["cn=developers,"+groupsOU]
	require.Len(t, mods, 1)
	require.Equal(t, directory.ModAdd, mods[0].Op)
	require.Equal(t, "memberUid", mods[0].Attr)
	require.Equal(t, []string{"bob"}, mods[0].Values)
}

func TestAddMemberAlreadyPresent(t *testing.T) {
	dir := newFakeDir()
	dir.modErr = fmt.Errorf("%w: value exists", shared.ErrDuplicate)
	svc := newTestService(dir)

	_, err := svc.AddMember(context.Background(), "developers", "bob", "admin")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRemoveMember(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(cn=developers)"] = []directory.Entry{
		groupEntry("developers", 2001, "alice"),
	}
	svc := newTestService(dir)

	group, err := svc.RemoveMember(context.Background(), "developers", "bob", "admin")
	require.NoError(t, err)
	require.NotContains(t, group.MemberUID, "bob")

	mods := dir.modified["cn=developers,"+groupsOU]
	require.Len(t, mods, 1)
	require.Equal(t, directory.ModDelete, mods[0].Op)
}

func TestRemoveMemberNotPresent(t *testing.T) {
	dir := newFakeDir()
	dir.modErr = fmt.Errorf("%w: no such value", shared.ErrNotFound)
	svc := newTestService(dir)

	_, err := svc.RemoveMember(context.Background(), "developers", "ghost", "admin")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateGroupReplacesMembers(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(cn=developers)"] = []directory.Entry{
		groupEntry("developers", 2001, "carol"),
	}
	svc := newTestService(dir)

	members := []string{"carol"}
	_, err := svc.Update(context.Background(), "developers", UpdateParams{MemberUID: &members}, "admin")
	require.NoError(t, err)

	mods := dir.modified["cn=developers,"+groupsOU]
	require.Len(t, mods, 1)
	require.Equal(t, directory.ModReplace, mods[0].Op)
	require.Equal(t, []string{"carol"}, mods[0].Values)
}

func TestDeleteGroup(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	require.NoError(t, svc.Delete(context.Background(), "developers", "admin"))
	require.Equal(t, []string{"cn=developers," + groupsOU}, dir.deleted)
}
