package users

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var userAttrs = []string{
	"uid", "cn", "mail", "givenName", "sn", "description",
	"uidNumber", "gidNumber", "homeDirectory", "loginShell",
	"memberOf", "createTimestamp", "modifyTimestamp",
}

var uidPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// Service implements user management against the people OU.
type Service struct {
	dir      directory.Client
	peopleOU string
	policy   auth.PasswordPolicy
	audit    *audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a user service.
func NewService(dir directory.Client, peopleOU string, policy auth.PasswordPolicy, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{dir: dir, peopleOU: peopleOU, policy: policy, audit: recorder, logger: logger}
}

func (s *Service) userDN(uid string) string {
	return fmt.Sprintf("uid=%s,%s", uid, s.peopleOU)
}

func entryToUser(e directory.Entry) User {
	return User{
		DN:              e.DN,
		UID:             e.First("uid"),
		CN:              e.First("cn"),
		Mail:            e.First("mail"),
		GivenName:       e.First("givenName"),
		SN:              e.First("sn"),
		Description:     e.First("description"),
		UIDNumber:       e.Int("uidNumber"),
		GIDNumber:       e.Int("gidNumber"),
		HomeDirectory:   e.First("homeDirectory"),
		LoginShell:      e.First("loginShell"),
		MemberOf:        e.Values("memberOf"),
		CreateTimestamp: e.First("createTimestamp"),
		ModifyTimestamp: e.First("modifyTimestamp"),
	}
}

// List returns every user, optionally narrowed by a substring search over
// uid, cn and mail.
func (s *Service) List(ctx context.Context, search string) ([]User, error) {
	filter := "(objectClass=posixAccount)"
	if search != "" {
		escaped := directory.EscapeFilter(search)
		filter = fmt.Sprintf("(&(objectClass=posixAccount)(|(uid=*%s*)(cn=*%s*)(mail=*%s*)))", escaped, escaped, escaped)
	}
	entries, err := s.dir.Search(ctx, s.peopleOU, filter, userAttrs)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(entries))
	for _, e := range entries {
		users = append(users, entryToUser(e))
	}
	return users, nil
}

// Get fetches one user by uid.
func (s *Service) Get(ctx context.Context, uid string) (User, error) {
	filter := fmt.Sprintf("(uid=%s)", directory.EscapeFilter(uid))
	entries, err := s.dir.Search(ctx, s.peopleOU, filter, userAttrs)
	if err != nil {
		return User{}, err
	}
	if len(entries) == 0 {
		return User{}, fmt.Errorf("%w: user %s", shared.ErrNotFound, uid)
	}
	return entryToUser(entries[0]), nil
}

// nextUIDNumber scans existing accounts for the highest uidNumber, starting
// the range at 1000.
func (s *Service) nextUIDNumber(ctx context.Context) (int, error) {
	entries, err := s.dir.Search(ctx, s.peopleOU, "(objectClass=posixAccount)", []string{"uidNumber"})
	if err != nil {
		return 0, err
	}
	max := 1000
	for _, e := range entries {
		if n := e.Int("uidNumber"); n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Create adds a new posixAccount/inetOrgPerson entry. The uidNumber,
// gidNumber and homeDirectory default when absent, matching how the
// directory was provisioned historically.
func (s *Service) Create(ctx context.Context, p CreateParams, actor string) (User, error) {
	if !uidPattern.MatchString(p.UID) {
		return User{}, fmt.Errorf("%w: username must start with a letter and contain only lowercase letters, numbers, dots, hyphens and underscores", shared.ErrValidation)
	}
	if err := s.policy.Validate(p.Password); err != nil {
		return User{}, err
	}

	if p.UIDNumber == 0 {
		next, err := s.nextUIDNumber(ctx)
		if err != nil {
			return User{}, err
		}
		p.UIDNumber = next
	}
	if p.GIDNumber == 0 {
		p.GIDNumber = p.UIDNumber
	}
	if p.HomeDirectory == "" {
		p.HomeDirectory = "/home/" + p.UID
	}
	if p.LoginShell == "" {
		p.LoginShell = "/bin/bash"
	}
	// sn is mandatory for inetOrgPerson; fall back through givenName to cn.
	if p.SN == "" {
		if p.GivenName != "" {
			p.SN = p.GivenName
		} else {
			p.SN = p.CN
		}
	}

	hashed, err := auth.HashPassword(p.Password)
	if err != nil {
		return User{}, err
	}

	attrs := map[string][]string{
		"objectClass":   {"inetOrgPerson", "posixAccount", "top"},
		"uid":           {p.UID},
		"cn":            {p.CN},
		"sn":            {p.SN},
		"uidNumber":     {fmt.Sprint(p.UIDNumber)},
		"gidNumber":     {fmt.Sprint(p.GIDNumber)},
		"homeDirectory": {p.HomeDirectory},
		"loginShell":    {p.LoginShell},
		"userPassword":  {hashed},
	}
	if p.Mail != "" {
		attrs["mail"] = []string{p.Mail}
	}
	if p.GivenName != "" {
		attrs["givenName"] = []string{p.GivenName}
	}
	if p.Description != "" {
		attrs["description"] = []string{p.Description}
	}

	if err := s.dir.AddEntry(ctx, s.userDN(p.UID), attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "user", p.UID, actor, "failure", map[string]any{"error": err.Error()})
		return User{}, err
	}
	s.logger.Info("user created", slog.String("uid", p.UID), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "user", p.UID, actor, "success", map[string]any{
		"uidNumber": p.UIDNumber,
		"gidNumber": p.GIDNumber,
		"cn":        p.CN,
	})
	return s.Get(ctx, p.UID)
}

// Update replaces the provided attributes on an existing user.
func (s *Service) Update(ctx context.Context, uid string, p UpdateParams, actor string) (User, error) {
	mods := []directory.Modification{}
	changed := map[string]any{}
	replace := func(attr string, value *string) {
		if value != nil {
			mods = append(mods, directory.Replace(attr, *value))
			changed[attr] = *value
		}
	}
	replace("cn", p.CN)
	replace("mail", p.Mail)
	replace("givenName", p.GivenName)
	replace("sn", p.SN)
	replace("description", p.Description)
	replace("loginShell", p.LoginShell)

	if len(mods) == 0 {
		return s.Get(ctx, uid)
	}

	if err := s.dir.ModifyEntry(ctx, s.userDN(uid), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "user", uid, actor, "failure", map[string]any{"error": err.Error()})
		return User{}, err
	}
	s.logger.Info("user updated", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "user", uid, actor, "success", changed)
	return s.Get(ctx, uid)
}

// Delete removes a user entry.
func (s *Service) Delete(ctx context.Context, uid string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.userDN(uid)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "user", uid, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("user deleted", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "user", uid, actor, "success", nil)
	return nil
}

// ResetPassword replaces a user's password. Admin only, enforced at the route.
func (s *Service) ResetPassword(ctx context.Context, uid, newPassword, actor string) error {
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}
	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	mods := []directory.Modification{directory.Replace("userPassword", hashed)}
	if err := s.dir.ModifyEntry(ctx, s.userDN(uid), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "user", uid, actor, "failure", map[string]any{"action": "password_reset", "error": err.Error()})
		return err
	}
	s.logger.Info("password reset", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "user", uid, actor, "success", map[string]any{"action": "password_reset"})
	return nil
}
