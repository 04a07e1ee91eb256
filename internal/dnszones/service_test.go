package dnszones

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

const dnsOU = "ou=dns,dc=example,dc=com"

type fakeDir struct {
	searches map[string][]directory.Entry
	entries  map[string]directory.Entry
	added    map[string]map[string][]string
	modified map[string][]directory.Modification
	deleted  []string
	addErr   error
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		searches: map[string][]directory.Entry{},
		entries:  map[string]directory.Entry{},
		added:    map[string]map[string][]string{},
		modified: map[string][]directory.Modification{},
	}
}

func (f *fakeDir) Search(ctx context.Context, baseDN, filter string, attrs []string) ([]directory.Entry, error) {
	return f.searches[filter], nil
}

func (f *fakeDir) GetEntry(ctx context.Context, dn string, attrs []string) (directory.Entry, error) {
	entry, ok := f.entries[dn]
	if !ok {
		return directory.Entry{}, shared.ErrNotFound
	}
	return entry, nil
}

func (f *fakeDir) AddEntry(ctx context.Context, dn string, attrs map[string][]string) error {
	if f.addErr != nil {
		return f.addErr
	}
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

func newTestService(dir directory.Client) *Service {
	svc := NewService(dir, dnsOU, nil, slog.Default())
	svc.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func zoneEntry(name string, serial int) directory.Entry {
	return directory.Entry{
		DN: fmt.Sprintf("idnsName=%s,%s", name, dnsOU),
		Attributes: map[string][]string{
			"idnsName":      {name},
			"idnsSOAserial": {fmt.Sprint(serial)},
			"idnsSOAmName":  {"ns1." + name + "."},
		},
	}
}

func TestNextSerialIsDateBased(t *testing.T) {
	svc := newTestService(newFakeDir())
	require.Equal(t, 2026082901, svc.nextSerial())
}

func TestCreateZoneDefaults(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(&(objectClass=idnsZone)(idnsName=example.com))"] = []directory.Entry{
		zoneEntry("example.com", 2026082901),
	}
	svc := newTestService(dir)

	zone, err := svc.CreateZone(context.Background(), CreateZoneParams{
		Name:     "Example.COM",
		SOAMName: "ns1.example.com.",
		SOARName: "hostmaster.example.com.",
	}, "admin")
	require.NoError(t, err)
	require.Equal(t, "example.com", zone.Name)

	attrs := dir.added["idnsName=example.com,"+dnsOU]
	require.NotNil(t, attrs)
	require.Equal(t, []string{"2026082901"}, attrs["idnsSOAserial"])
	require.Equal(t, []string{"10800"}, attrs["idnsSOArefresh"])
	require.Equal(t, []string{"3600"}, attrs["idnsSOAretry"])
	require.Equal(t, []string{"604800"}, attrs["idnsSOAexpire"])
	require.Equal(t, []string{"86400"}, attrs["idnsSOAminimum"])
	require.Contains(t, attrs["objectClass"], "idnsZone")
}

func TestCreateZoneValidation(t *testing.T) {
	svc := newTestService(newFakeDir())

	_, err := svc.CreateZone(context.Background(), CreateZoneParams{
		Name: "bad zone!", SOAMName: "ns1.", SOARName: "root.",
	}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateZone(context.Background(), CreateZoneParams{Name: "example.com"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateZoneAcceptsReverseZone(t *testing.T) {
	dir := newFakeDir()
	name := "1.168.192.in-addr.arpa"
	dir.searches["(&(objectClass=idnsZone)(idnsName="+name+"))"] = []directory.Entry{
		zoneEntry(name, 2026082901),
	}
	svc := newTestService(dir)

	_, err := svc.CreateZone(context.Background(), CreateZoneParams{
		Name:     name,
		SOAMName: "ns1.example.com.",
		SOARName: "hostmaster.example.com.",
	}, "admin")
	require.NoError(t, err)
}

func TestUpdateZoneAlwaysBumpsSerial(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(&(objectClass=idnsZone)(idnsName=example.com))"] = []directory.Entry{
		zoneEntry("example.com", 2026082901),
	}
	svc := newTestService(dir)

	refresh := 7200
	_, err := svc.UpdateZone(context.Background(), "example.com", UpdateZoneParams{SOARefresh: &refresh}, "admin")
	require.NoError(t, err)

	mods := dir.modified["idnsName=example.com,"+dnsOU]
	require.Len(t, mods, 2)
	require.Equal(t, "idnsSOArefresh", mods[0].Attr)
	require.Equal(t, "idnsSOAserial", mods[1].Attr)
	require.Equal(t, []string{"2026082901"}, mods[1].Values)
}

func TestUpdateZoneNoChangesSkipsSerialBump(t *testing.T) {
	dir := newFakeDir()
	dir.searches["(&(objectClass=idnsZone)(idnsName=example.com))"] = []directory.Entry{
		zoneEntry("example.com", 2026082901),
	}
	svc := newTestService(dir)

	_, err := svc.UpdateZone(context.Background(), "example.com", UpdateZoneParams{}, "admin")
	require.NoError(t, err)
	require.Empty(t, dir.modified)
}

func TestListRecordsFlattensValues(t *testing.T) {
	dir := newFakeDir()
	zoneDN := "idnsName=example.com," + dnsOU
	dir.searches["(&(objectClass=idnsZone)(idnsName=example.com))"] = []directory.Entry{
		zoneEntry("example.com", 2026082901),
	}
	dir.searches["(objectClass=idnsRecord)"] = []directory.Entry{
		// The zone entry itself shows up in the subtree search and must be
		// skipped.
		zoneEntry("example.com", 2026082901),
		{
			DN: "idnsName=www," + zoneDN,
			Attributes: map[string][]string{
				"idnsName":    {"www"},
				"aRecord":     {"192.0.2.10", "192.0.2.11"},
				"cNAMERecord": {},
			},
		},
		{
			DN: "idnsName=mail," + zoneDN,
			Attributes: map[string][]string{
				"idnsName": {"mail"},
				"mXRecord": {"10 mx1.example.com."},
			},
		},
	}
	svc := newTestService(dir)

	records, err := svc.ListRecords(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "www", records[0].Name)
	require.Equal(t, "A", records[0].Type)
	require.Equal(t, "192.0.2.10", records[0].Value)
	require.Equal(t, "192.0.2.11", records[1].Value)
	require.Equal(t, "MX", records[2].Type)
}

func TestListRecordsUnknownZone(t *testing.T) {
	svc := newTestService(newFakeDir())
	_, err := svc.ListRecords(context.Background(), "ghost.example")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRecordNewName(t *testing.T) {
	dir := newFakeDir()
	svc := newTestService(dir)

	record, err := svc.CreateRecord(context.Background(), "example.com", CreateRecordParams{
		Name:  "www",
		Type:  "a",
		Value: "192.0.2.10",
	}, "admin")
	require.NoError(t, err)
	require.Equal(t, "A", record.Type)

	dn := "idnsName=www,idnsName=example.com," + dnsOU
	attrs := dir.added[dn]
	require.NotNil(t, attrs)
	require.Equal(t, []string{"192.0.2.10"}, attrs["aRecord"])
	require.Empty(t, dir.modified)
}

func TestCreateRecordAppendsToExistingEntry(t *testing.T) {
	dir := newFakeDir()
	dir.addErr = fmt.Errorf("%w: entry exists", shared.ErrDuplicate)
	svc := newTestService(dir)

	_, err := svc.CreateRecord(context.Background(), "example.com", CreateRecordParams{
		Name:  "www",
		Type:  "A",
		Value: "192.0.2.11",
	}, "admin")
	require.NoError(t, err)

	dn := "idnsName=www,idnsName=example.com," + dnsOU
	mods := dir.modified[dn]
	require.Len(t, mods, 1)
	require.Equal(t, directory.ModAdd, mods[0].Op)
	require.Equal(t, "aRecord", mods[0].Attr)
}

func TestCreateRecordUnsupportedType(t *testing.T) {
	svc := newTestService(newFakeDir())
	_, err := svc.CreateRecord(context.Background(), "example.com", CreateRecordParams{
		Name: "www", Type: "SOA", Value: "x",
	}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRecordDropsEmptyEntry(t *testing.T) {
	dir := newFakeDir()
	dn := "idnsName=www,idnsName=example.com," + dnsOU
	dir.entries[dn] = directory.Entry{
		DN:         dn,
		Attributes: map[string][]string{"idnsName": {"www"}},
	}
	svc := newTestService(dir)

	err := svc.DeleteRecord(context.Background(), "example.com", "www", "A", "192.0.2.10", "admin")
	require.NoError(t, err)
	require.Equal(t, []string{dn}, dir.deleted)
}

func TestDeleteRecordKeepsEntryWithRemainingValues(t *testing.T) {
	dir := newFakeDir()
	dn := "idnsName=www,idnsName=example.com," + dnsOU
	dir.entries[dn] = directory.Entry{
		DN: dn,
		Attributes: map[string][]string{
			"idnsName": {"www"},
			"aRecord":  {"192.0.2.11"},
		},
	}
	svc := newTestService(dir)

	err := svc.DeleteRecord(context.Background(), "example.com", "www", "A", "192.0.2.10", "admin")
	require.NoError(t, err)
	require.Empty(t, dir.deleted)
}
