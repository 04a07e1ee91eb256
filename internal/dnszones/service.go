package dnszones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var zoneAttrs = []string{
	"idnsName", "idnsSOAserial", "idnsSOArefresh", "idnsSOAretry",
	"idnsSOAexpire", "idnsSOAminimum", "idnsSOAmName", "idnsSOArName",
	"description", "createTimestamp", "modifyTimestamp",
}

var recordAttrs = []string{
	"idnsName", "aRecord", "aAAARecord", "cNAMERecord", "mXRecord",
	"tXTRecord", "pTRRecord", "sRVRecord", "nSRecord",
	"createTimestamp", "modifyTimestamp",
}

// recordTypeAttrs maps the API record type to its directory attribute.
// Iteration over record values follows this order.
var recordTypeAttrs = []struct {
	Type string
	Attr string
}{
	{"A", "aRecord"},
	{"AAAA", "aAAARecord"},
	{"CNAME", "cNAMERecord"},
	{"MX", "mXRecord"},
	{"TXT", "tXTRecord"},
	{"PTR", "pTRRecord"},
	{"SRV", "sRVRecord"},
	{"NS", "nSRecord"},
}

func attrForType(recordType string) (string, bool) {
	upper := strings.ToUpper(recordType)
	for _, rt := range recordTypeAttrs {
		if rt.Type == upper {
			return rt.Attr, true
		}
	}
	return "", false
}

// Forward zones (example.com) and reverse zones (1.168.192.in-addr.arpa).
var zonePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// Service manages zones and records under the DNS OU.
type Service struct {
	dir    directory.Client
	dnsOU  string
	audit  *audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a DNS zone service.
func NewService(dir directory.Client, dnsOU string, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{dir: dir, dnsOU: dnsOU, audit: recorder, logger: logger, now: time.Now}
}

func (s *Service) zoneDN(name string) string {
	return fmt.Sprintf("idnsName=%s,%s", name, s.dnsOU)
}

func (s *Service) recordDN(zone, name string) string {
	return fmt.Sprintf("idnsName=%s,%s", name, s.zoneDN(zone))
}

// nextSerial builds a fresh SOA serial in YYYYMMDDnn form.
func (s *Service) nextSerial() int {
	date, _ := strconv.Atoi(s.now().UTC().Format("20060102"))
	return date*100 + 1
}

func entryToZone(e directory.Entry) Zone {
	return Zone{
		DN:              e.DN,
		Name:            e.First("idnsName"),
		SOASerial:       e.Int("idnsSOAserial"),
		SOARefresh:      e.Int("idnsSOArefresh"),
		SOARetry:        e.Int("idnsSOAretry"),
		SOAExpire:       e.Int("idnsSOAexpire"),
		SOAMinimum:      e.Int("idnsSOAminimum"),
		SOAMName:        e.First("idnsSOAmName"),
		SOARName:        e.First("idnsSOArName"),
		Description:     e.First("description"),
		CreateTimestamp: e.First("createTimestamp"),
		ModifyTimestamp: e.First("modifyTimestamp"),
	}
}

// ListZones returns zones, optionally narrowed by a substring search over
// zone name and description.
func (s *Service) ListZones(ctx context.Context, search string) ([]Zone, error) {
	filter := "(objectClass=idnsZone)"
	if search != "" {
		escaped := directory.EscapeFilter(search)
		filter = fmt.Sprintf("(&(objectClass=idnsZone)(|(idnsName=*%s*)(description=*%s*)))", escaped, escaped)
	}
	entries, err := s.dir.Search(ctx, s.dnsOU, filter, zoneAttrs)
	if err != nil {
		return nil, err
	}
	zones := make([]Zone, 0, len(entries))
	for _, e := range entries {
		zones = append(zones, entryToZone(e))
	}
	return zones, nil
}

// GetZone fetches one zone by name.
func (s *Service) GetZone(ctx context.Context, name string) (Zone, error) {
	filter := fmt.Sprintf("(&(objectClass=idnsZone)(idnsName=%s))", directory.EscapeFilter(name))
	entries, err := s.dir.Search(ctx, s.dnsOU, filter, zoneAttrs)
	if err != nil {
		return Zone{}, err
	}
	if len(entries) == 0 {
		return Zone{}, fmt.Errorf("%w: zone %s", shared.ErrNotFound, name)
	}
	return entryToZone(entries[0]), nil
}

// CreateZone adds a new idnsZone entry with SOA attributes. Missing timers
// get BIND-conventional defaults, a missing serial gets a fresh one.
func (s *Service) CreateZone(ctx context.Context, p CreateZoneParams, actor string) (Zone, error) {
	p.Name = strings.ToLower(p.Name)
	if !zonePattern.MatchString(p.Name) {
		return Zone{}, fmt.Errorf("%w: invalid zone name %q", shared.ErrValidation, p.Name)
	}
	if p.SOAMName == "" || p.SOARName == "" {
		return Zone{}, fmt.Errorf("%w: SOA nameserver and responsible person are required", shared.ErrValidation)
	}
	if p.SOASerial == 0 {
		p.SOASerial = s.nextSerial()
	}
	if p.SOARefresh == 0 {
		p.SOARefresh = 10800
	}
	if p.SOARetry == 0 {
		p.SOARetry = 3600
	}
	if p.SOAExpire == 0 {
		p.SOAExpire = 604800
	}
	if p.SOAMinimum == 0 {
		p.SOAMinimum = 86400
	}

	attrs := map[string][]string{
		"objectClass":    {"idnsZone", "idnsRecord", "top"},
		"idnsName":       {p.Name},
		"idnsSOAserial":  {fmt.Sprint(p.SOASerial)},
		"idnsSOArefresh": {fmt.Sprint(p.SOARefresh)},
		"idnsSOAretry":   {fmt.Sprint(p.SOARetry)},
		"idnsSOAexpire":  {fmt.Sprint(p.SOAExpire)},
		"idnsSOAminimum": {fmt.Sprint(p.SOAMinimum)},
		"idnsSOAmName":   {p.SOAMName},
		"idnsSOArName":   {p.SOARName},
	}
	if p.Description != "" {
		attrs["description"] = []string{p.Description}
	}

	if err := s.dir.AddEntry(ctx, s.zoneDN(p.Name), attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "dns_zone", p.Name, actor, "failure", map[string]any{"error": err.Error()})
		return Zone{}, err
	}
	s.logger.Info("dns zone created", slog.String("zone", p.Name), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "dns_zone", p.Name, actor, "success", map[string]any{
		"serial":     p.SOASerial,
		"nameserver": p.SOAMName,
	})
	return s.GetZone(ctx, p.Name)
}

// UpdateZone replaces SOA timers and description. Every update also bumps
// the serial so secondaries pick the change up.
func (s *Service) UpdateZone(ctx context.Context, name string, p UpdateZoneParams, actor string) (Zone, error) {
	mods := []directory.Modification{}
	changed := map[string]any{}
	if p.Description != nil {
		mods = append(mods, directory.Replace("description", *p.Description))
		changed["description"] = *p.Description
	}
	if p.SOARefresh != nil {
		mods = append(mods, directory.Replace("idnsSOArefresh", fmt.Sprint(*p.SOARefresh)))
		changed["idnsSOArefresh"] = *p.SOARefresh
	}
	if p.SOARetry != nil {
		mods = append(mods, directory.Replace("idnsSOAretry", fmt.Sprint(*p.SOARetry)))
		changed["idnsSOAretry"] = *p.SOARetry
	}
	if p.SOAExpire != nil {
		mods = append(mods, directory.Replace("idnsSOAexpire", fmt.Sprint(*p.SOAExpire)))
		changed["idnsSOAexpire"] = *p.SOAExpire
	}
	if p.SOAMinimum != nil {
		mods = append(mods, directory.Replace("idnsSOAminimum", fmt.Sprint(*p.SOAMinimum)))
		changed["idnsSOAminimum"] = *p.SOAMinimum
	}
	if len(mods) == 0 {
		return s.GetZone(ctx, name)
	}
	serial := s.nextSerial()
	mods = append(mods, directory.Replace("idnsSOAserial", fmt.Sprint(serial)))
	changed["idnsSOAserial"] = serial

	if err := s.dir.ModifyEntry(ctx, s.zoneDN(name), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "dns_zone", name, actor, "failure", map[string]any{"error": err.Error()})
		return Zone{}, err
	}
	s.logger.Info("dns zone updated", slog.String("zone", name), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "dns_zone", name, actor, "success", changed)
	return s.GetZone(ctx, name)
}

// DeleteZone removes a zone entry. A zone that still holds record entries
// surfaces as a duplicate-style conflict.
func (s *Service) DeleteZone(ctx context.Context, name string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.zoneDN(name)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "dns_zone", name, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("dns zone deleted", slog.String("zone", name), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "dns_zone", name, actor, "success", nil)
	return nil
}

// ListRecords flattens every record value under a zone into one Record per
// value.
func (s *Service) ListRecords(ctx context.Context, zone string) ([]Record, error) {
	if _, err := s.GetZone(ctx, zone); err != nil {
		return nil, err
	}
	zoneDN := s.zoneDN(zone)
	entries, err := s.dir.Search(ctx, zoneDN, "(objectClass=idnsRecord)", recordAttrs)
	if err != nil {
		return nil, err
	}
	records := []Record{}
	for _, e := range entries {
		if strings.EqualFold(e.DN, zoneDN) {
			continue
		}
		name := e.First("idnsName")
		for _, rt := range recordTypeAttrs {
			for _, value := range e.Values(rt.Attr) {
				records = append(records, Record{
					DN:              e.DN,
					Name:            name,
					Type:            rt.Type,
					Value:           value,
					CreateTimestamp: e.First("createTimestamp"),
					ModifyTimestamp: e.First("modifyTimestamp"),
				})
			}
		}
	}
	return records, nil
}

// CreateRecord adds a record value. A new name creates the entry, an
// existing name gets the value appended; an existing identical value is a
// duplicate.
func (s *Service) CreateRecord(ctx context.Context, zone string, p CreateRecordParams, actor string) (Record, error) {
	attr, ok := attrForType(p.Type)
	if !ok {
		return Record{}, fmt.Errorf("%w: unsupported record type %q", shared.ErrValidation, p.Type)
	}
	recordDN := s.recordDN(zone, p.Name)

	attrs := map[string][]string{
		"objectClass": {"idnsRecord", "top"},
		"idnsName":    {p.Name},
		attr:          {p.Value},
	}
	err := s.dir.AddEntry(ctx, recordDN, attrs)
	if errors.Is(err, shared.ErrDuplicate) {
		err = s.dir.ModifyEntry(ctx, recordDN, []directory.Modification{directory.Add(attr, p.Value)})
	}
	if err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "dns_record", fmt.Sprintf("%s/%s", zone, p.Name), actor, "failure", map[string]any{"error": err.Error()})
		return Record{}, err
	}
	s.logger.Info("dns record created",
		slog.String("zone", zone), slog.String("name", p.Name),
		slog.String("type", strings.ToUpper(p.Type)), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "dns_record", fmt.Sprintf("%s/%s", zone, p.Name), actor, "success", map[string]any{
		"type":  strings.ToUpper(p.Type),
		"value": p.Value,
	})
	return Record{DN: recordDN, Name: p.Name, Type: strings.ToUpper(p.Type), Value: p.Value}, nil
}

// DeleteRecord removes one record value and drops the entry once no record
// data remains on it.
func (s *Service) DeleteRecord(ctx context.Context, zone, name, recordType, value, actor string) error {
	attr, ok := attrForType(recordType)
	if !ok {
		return fmt.Errorf("%w: unsupported record type %q", shared.ErrValidation, recordType)
	}
	recordDN := s.recordDN(zone, name)

	if err := s.dir.ModifyEntry(ctx, recordDN, []directory.Modification{directory.Delete(attr, value)}); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "dns_record", fmt.Sprintf("%s/%s", zone, name), actor, "failure", map[string]any{"error": err.Error()})
		return err
	}

	entry, err := s.dir.GetEntry(ctx, recordDN, recordAttrs)
	if err == nil {
		remaining := false
		for _, rt := range recordTypeAttrs {
			if len(entry.Values(rt.Attr)) > 0 {
				remaining = true
				break
			}
		}
		if !remaining {
			if err := s.dir.DeleteEntry(ctx, recordDN); err != nil {
				s.logger.Warn("drop empty record entry", slog.String("dn", recordDN), slog.Any("error", err))
			}
		}
	}

	s.logger.Info("dns record deleted",
		slog.String("zone", zone), slog.String("name", name),
		slog.String("type", strings.ToUpper(recordType)), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "dns_record", fmt.Sprintf("%s/%s", zone, name), actor, "success", map[string]any{
		"type":  strings.ToUpper(recordType),
		"value": value,
	})
	return nil
}
