package dhcp

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/netip"
	"strings"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var subnetAttrs = []string{
	"cn", "dhcpNetMask", "dhcpOption", "dhcpRange",
	"description", "createTimestamp", "modifyTimestamp",
}

var hostAttrs = []string{
	"cn", "dhcpHWAddress", "dhcpStatements", "dhcpOption",
	"description", "createTimestamp", "modifyTimestamp",
}

// Service manages the DHCP configuration tree rooted at cn=config of the
// DHCP OU.
type Service struct {
	dir    directory.Client
	dhcpOU string
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewService constructs a DHCP service.
func NewService(dir directory.Client, dhcpOU string, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{dir: dir, dhcpOU: dhcpOU, audit: recorder, logger: logger}
}

func (s *Service) configDN() string {
	return fmt.Sprintf("cn=config,%s", s.dhcpOU)
}

func (s *Service) subnetDN(cn string) string {
	return fmt.Sprintf("cn=%s,%s", cn, s.configDN())
}

func (s *Service) hostDN(subnet, cn string) string {
	return fmt.Sprintf("cn=%s,%s", cn, s.subnetDN(subnet))
}

func entryToSubnet(e directory.Entry) Subnet {
	mask := e.Int("dhcpNetMask")
	if mask == 0 {
		mask = 24
	}
	return Subnet{
		DN:              e.DN,
		CN:              e.First("cn"),
		NetMask:         mask,
		Options:         e.Values("dhcpOption"),
		Ranges:          e.Values("dhcpRange"),
		Description:     e.First("description"),
		CreateTimestamp: e.First("createTimestamp"),
		ModifyTimestamp: e.First("modifyTimestamp"),
	}
}

func entryToHost(e directory.Entry) Host {
	hw := e.First("dhcpHWAddress")
	statements := e.Values("dhcpStatements")
	host := Host{
		DN:              e.DN,
		CN:              e.First("cn"),
		HWAddress:       hw,
		Statements:      statements,
		Options:         e.Values("dhcpOption"),
		Description:     e.First("description"),
		CreateTimestamp: e.First("createTimestamp"),
		ModifyTimestamp: e.First("modifyTimestamp"),
	}
	if strings.HasPrefix(hw, "ethernet ") {
		host.MACAddress = strings.TrimPrefix(hw, "ethernet ")
	}
	for _, stmt := range statements {
		if strings.HasPrefix(stmt, "fixed-address ") {
			host.FixedAddress = strings.TrimSpace(strings.TrimPrefix(stmt, "fixed-address "))
			break
		}
	}
	return host
}

// ListSubnets returns subnets, optionally narrowed by a substring search
// over cn and description.
func (s *Service) ListSubnets(ctx context.Context, search string) ([]Subnet, error) {
	filter := "(objectClass=dhcpSubnet)"
	if search != "" {
		escaped := directory.EscapeFilter(search)
		filter = fmt.Sprintf("(&(objectClass=dhcpSubnet)(|(cn=*%s*)(description=*%s*)))", escaped, escaped)
	}
	entries, err := s.dir.Search(ctx, s.configDN(), filter, subnetAttrs)
	if err != nil {
		return nil, err
	}
	subnets := make([]Subnet, 0, len(entries))
	for _, e := range entries {
		subnets = append(subnets, entryToSubnet(e))
	}
	return subnets, nil
}

// GetSubnet fetches one subnet by network cn.
func (s *Service) GetSubnet(ctx context.Context, cn string) (Subnet, error) {
	filter := fmt.Sprintf("(&(objectClass=dhcpSubnet)(cn=%s))", directory.EscapeFilter(cn))
	entries, err := s.dir.Search(ctx, s.configDN(), filter, subnetAttrs)
	if err != nil {
		return Subnet{}, err
	}
	if len(entries) == 0 {
		return Subnet{}, fmt.Errorf("%w: subnet %s", shared.ErrNotFound, cn)
	}
	return entryToSubnet(entries[0]), nil
}

// CreateSubnet adds a dhcpSubnet entry. The cn must be an IPv4 network
// address and the mask a valid prefix length.
func (s *Service) CreateSubnet(ctx context.Context, p CreateSubnetParams, actor string) (Subnet, error) {
	addr, err := netip.ParseAddr(p.CN)
	if err != nil || !addr.Is4() {
		return Subnet{}, fmt.Errorf("%w: subnet cn must be an IPv4 network address", shared.ErrValidation)
	}
	if p.NetMask < 0 || p.NetMask > 32 {
		return Subnet{}, fmt.Errorf("%w: netmask must be between 0 and 32", shared.ErrValidation)
	}
	for _, rng := range p.Ranges {
		if err := validateRange(rng); err != nil {
			return Subnet{}, err
		}
	}

	attrs := map[string][]string{
		"objectClass": {"dhcpSubnet", "top"},
		"cn":          {p.CN},
		"dhcpNetMask": {fmt.Sprint(p.NetMask)},
	}
	if len(p.Options) > 0 {
		attrs["dhcpOption"] = p.Options
	}
	if len(p.Ranges) > 0 {
		attrs["dhcpRange"] = p.Ranges
	}
	if p.Description != "" {
		attrs["description"] = []string{p.Description}
	}

	if err := s.dir.AddEntry(ctx, s.subnetDN(p.CN), attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "dhcp_subnet", p.CN, actor, "failure", map[string]any{"error": err.Error()})
		return Subnet{}, err
	}
	s.logger.Info("dhcp subnet created", slog.String("cn", p.CN), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "dhcp_subnet", p.CN, actor, "success", map[string]any{"netmask": p.NetMask})
	return s.GetSubnet(ctx, p.CN)
}

// UpdateSubnet replaces the provided attributes on a subnet.
func (s *Service) UpdateSubnet(ctx context.Context, cn string, p UpdateSubnetParams, actor string) (Subnet, error) {
	mods := []directory.Modification{}
	changed := map[string]any{}
	if p.Options != nil {
		mods = append(mods, directory.Replace("dhcpOption", *p.Options...))
		changed["dhcpOption"] = *p.Options
	}
	if p.Ranges != nil {
		for _, rng := range *p.Ranges {
			if err := validateRange(rng); err != nil {
				return Subnet{}, err
			}
		}
		mods = append(mods, directory.Replace("dhcpRange", *p.Ranges...))
		changed["dhcpRange"] = *p.Ranges
	}
	if p.Description != nil {
		mods = append(mods, directory.Replace("description", *p.Description))
		changed["description"] = *p.Description
	}
	if len(mods) == 0 {
		return s.GetSubnet(ctx, cn)
	}

	if err := s.dir.ModifyEntry(ctx, s.subnetDN(cn), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "dhcp_subnet", cn, actor, "failure", map[string]any{"error": err.Error()})
		return Subnet{}, err
	}
	s.logger.Info("dhcp subnet updated", slog.String("cn", cn), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "dhcp_subnet", cn, actor, "success", changed)
	return s.GetSubnet(ctx, cn)
}

// DeleteSubnet removes a subnet entry.
func (s *Service) DeleteSubnet(ctx context.Context, cn string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.subnetDN(cn)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "dhcp_subnet", cn, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("dhcp subnet deleted", slog.String("cn", cn), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "dhcp_subnet", cn, actor, "success", nil)
	return nil
}

// ListHosts returns the host reservations under a subnet.
func (s *Service) ListHosts(ctx context.Context, subnet string) ([]Host, error) {
	if _, err := s.GetSubnet(ctx, subnet); err != nil {
		return nil, err
	}
	entries, err := s.dir.Search(ctx, s.subnetDN(subnet), "(objectClass=dhcpHost)", hostAttrs)
	if err != nil {
		return nil, err
	}
	hosts := make([]Host, 0, len(entries))
	for _, e := range entries {
		hosts = append(hosts, entryToHost(e))
	}
	return hosts, nil
}

// CreateHost adds a static reservation beneath a subnet. The MAC address
// must parse and the fixed address must be a valid IP.
func (s *Service) CreateHost(ctx context.Context, subnet string, p CreateHostParams, actor string) (Host, error) {
	hw, err := net.ParseMAC(p.MAC)
	if err != nil {
		return Host{}, fmt.Errorf("%w: invalid MAC address %q", shared.ErrValidation, p.MAC)
	}
	if _, err := netip.ParseAddr(p.FixedAddress); err != nil {
		return Host{}, fmt.Errorf("%w: invalid fixed address %q", shared.ErrValidation, p.FixedAddress)
	}

	attrs := map[string][]string{
		"objectClass":    {"dhcpHost", "top"},
		"cn":             {p.CN},
		"dhcpHWAddress":  {"ethernet " + hw.String()},
		"dhcpStatements": {"fixed-address " + p.FixedAddress},
	}
	if len(p.Options) > 0 {
		attrs["dhcpOption"] = p.Options
	}
	if p.Description != "" {
		attrs["description"] = []string{p.Description}
	}

	hostDN := s.hostDN(subnet, p.CN)
	if err := s.dir.AddEntry(ctx, hostDN, attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "dhcp_host", fmt.Sprintf("%s/%s", subnet, p.CN), actor, "failure", map[string]any{"error": err.Error()})
		return Host{}, err
	}
	s.logger.Info("dhcp host created",
		slog.String("subnet", subnet), slog.String("cn", p.CN),
		slog.String("mac", hw.String()), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "dhcp_host", fmt.Sprintf("%s/%s", subnet, p.CN), actor, "success", map[string]any{
		"mac":           hw.String(),
		"fixed_address": p.FixedAddress,
	})
	return Host{
		DN:           hostDN,
		CN:           p.CN,
		HWAddress:    "ethernet " + hw.String(),
		Statements:   []string{"fixed-address " + p.FixedAddress},
		Options:      p.Options,
		Description:  p.Description,
		MACAddress:   hw.String(),
		FixedAddress: p.FixedAddress,
	}, nil
}

// DeleteHost removes a reservation.
func (s *Service) DeleteHost(ctx context.Context, subnet, cn string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.hostDN(subnet, cn)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "dhcp_host", fmt.Sprintf("%s/%s", subnet, cn), actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("dhcp host deleted", slog.String("subnet", subnet), slog.String("cn", cn), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "dhcp_host", fmt.Sprintf("%s/%s", subnet, cn), actor, "success", nil)
	return nil
}

// Stats aggregates subnet and reservation counts across the whole tree.
// Network and broadcast addresses are excluded from the usable count.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	subnets, err := s.dir.Search(ctx, s.configDN(), "(objectClass=dhcpSubnet)", []string{"cn", "dhcpNetMask"})
	if err != nil {
		return Stats{}, err
	}
	hosts, err := s.dir.Search(ctx, s.configDN(), "(objectClass=dhcpHost)", []string{"cn"})
	if err != nil {
		return Stats{}, err
	}

	totalIPs := 0
	for _, e := range subnets {
		mask := e.Int("dhcpNetMask")
		if mask == 0 {
			mask = 24
		}
		if mask < 31 {
			totalIPs += 1<<(32-mask) - 2
		}
	}

	stats := Stats{
		TotalSubnets:       len(subnets),
		TotalStaticHosts:   len(hosts),
		TotalIPAddresses:   totalIPs,
		AllocatedAddresses: len(hosts),
		AvailableAddresses: totalIPs - len(hosts),
	}
	if totalIPs > 0 {
		stats.UtilizationPercent = math.Round(float64(len(hosts))/float64(totalIPs)*10000) / 100
	}
	return stats, nil
}

func validateRange(rng string) error {
	parts := strings.Fields(rng)
	if len(parts) != 2 {
		return fmt.Errorf(`%w: range must be "start_ip end_ip"`, shared.ErrValidation)
	}
	for _, p := range parts {
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("%w: invalid IP address in range %q", shared.ErrValidation, rng)
		}
	}
	return nil
}
