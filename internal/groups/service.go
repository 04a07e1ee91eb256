package groups

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var groupAttrs = []string{"cn", "description", "gidNumber", "memberUid", "createTimestamp", "modifyTimestamp"}

var cnPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// Service implements group management against the groups OU.
type Service struct {
	dir      directory.Client
	groupsOU string
	audit    *audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a group service.
func NewService(dir directory.Client, groupsOU string, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{dir: dir, groupsOU: groupsOU, audit: recorder, logger: logger}
}

func (s *Service) groupDN(cn string) string {
	return fmt.Sprintf("cn=%s,%s", cn, s.groupsOU)
}

func entryToGroup(e directory.Entry) Group {
	return Group{
		DN:              e.DN,
		CN:              e.First("cn"),
		Description:     e.First("description"),
		GIDNumber:       e.Int("gidNumber"),
		MemberUID:       e.Values("memberUid"),
		CreateTimestamp: e.First("createTimestamp"),
		ModifyTimestamp: e.First("modifyTimestamp"),
	}
}

// List returns every group, optionally narrowed by a substring search over
// cn and description.
func (s *Service) List(ctx context.Context, search string) ([]Group, error) {
	filter := "(objectClass=posixGroup)"
	if search != "" {
		escaped := directory.EscapeFilter(search)
		filter = fmt.Sprintf("(&(objectClass=posixGroup)(|(cn=*%s*)(description=*%s*)))", escaped, escaped)
	}
	entries, err := s.dir.Search(ctx, s.groupsOU, filter, groupAttrs)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, entryToGroup(e))
	}
	return groups, nil
}

// Get fetches one group by cn.
func (s *Service) Get(ctx context.Context, cn string) (Group, error) {
	filter := fmt.Sprintf("(cn=%s)", directory.EscapeFilter(cn))
	entries, err := s.dir.Search(ctx, s.groupsOU, filter, groupAttrs)
	if err != nil {
		return Group{}, err
	}
	if len(entries) == 0 {
		return Group{}, fmt.Errorf("%w: group %s", shared.ErrNotFound, cn)
	}
	return entryToGroup(entries[0]), nil
}

func (s *Service) nextGIDNumber(ctx context.Context) (int, error) {
	entries, err := s.dir.Search(ctx, s.groupsOU, "(objectClass=posixGroup)", []string{"gidNumber"})
	if err != nil {
		return 0, err
	}
	max := 1000
	for _, e := range entries {
		if n := e.Int("gidNumber"); n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Create adds a new posixGroup entry.
func (s *Service) Create(ctx context.Context, p CreateParams, actor string) (Group, error) {
	if !cnPattern.MatchString(p.CN) {
		return Group{}, fmt.Errorf("%w: group name must start with a letter and contain only lowercase letters, numbers, dots, hyphens and underscores", shared.ErrValidation)
	}
	if p.GIDNumber == 0 {
		next, err := s.nextGIDNumber(ctx)
		if err != nil {
			return Group{}, err
		}
		p.GIDNumber = next
	}

	attrs := map[string][]string{
		"objectClass": {"posixGroup", "top"},
		"cn":          {p.CN},
		"gidNumber":   {fmt.Sprint(p.GIDNumber)},
	}
	if p.Description != "" {
		attrs["description"] = []string{p.Description}
	}
	if len(p.MemberUID) > 0 {
		attrs["memberUid"] = p.MemberUID
	}

	if err := s.dir.AddEntry(ctx, s.groupDN(p.CN), attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "group", p.CN, actor, "failure", map[string]any{"error": err.Error()})
		return Group{}, err
	}
	s.logger.Info("group created", slog.String("cn", p.CN), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "group", p.CN, actor, "success", map[string]any{"gidNumber": p.GIDNumber})
	return s.Get(ctx, p.CN)
}

// Update replaces the provided attributes on an existing group.
func (s *Service) Update(ctx context.Context, cn string, p UpdateParams, actor string) (Group, error) {
	mods := []directory.Modification{}
	changed := map[string]any{}
	if p.Description != nil {
		mods = append(mods, directory.Replace("description", *p.Description))
		changed["description"] = *p.Description
	}
	if p.MemberUID != nil {
		mods = append(mods, directory.Replace("memberUid", *p.MemberUID...))
		changed["memberUid"] = *p.MemberUID
	}
	if len(mods) == 0 {
		return s.Get(ctx, cn)
	}

	if err := s.dir.ModifyEntry(ctx, s.groupDN(cn), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "failure", map[string]any{"error": err.Error()})
		return Group{}, err
	}
	s.logger.Info("group updated", slog.String("cn", cn), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "success", changed)
	return s.Get(ctx, cn)
}

// Delete removes a group entry.
func (s *Service) Delete(ctx context.Context, cn string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.groupDN(cn)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "group", cn, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("group deleted", slog.String("cn", cn), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "group", cn, actor, "success", nil)
	return nil
}

// AddMember appends a memberUid value. A user already in the group surfaces
// as a duplicate, an unknown group as not found.
func (s *Service) AddMember(ctx context.Context, cn, username, actor string) (Group, error) {
	mods := []directory.Modification{directory.Add("memberUid", username)}
	if err := s.dir.ModifyEntry(ctx, s.groupDN(cn), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "failure", map[string]any{"add_member": username, "error": err.Error()})
		return Group{}, err
	}
	s.logger.Info("group member added", slog.String("cn", cn), slog.String("member", username), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "success", map[string]any{"add_member": username})
	return s.Get(ctx, cn)
}

// RemoveMember deletes a memberUid value. Removing a non-member surfaces as
// not found.
func (s *Service) RemoveMember(ctx context.Context, cn, username, actor string) (Group, error) {
	mods := []directory.Modification{directory.Delete("memberUid", username)}
	if err := s.dir.ModifyEntry(ctx, s.groupDN(cn), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "failure", map[string]any{"remove_member": username, "error": err.Error()})
		return Group{}, err
	}
	s.logger.Info("group member removed", slog.String("cn", cn), slog.String("member", username), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "group", cn, actor, "success", map[string]any{"remove_member": username})
	return s.Get(ctx, cn)
}
