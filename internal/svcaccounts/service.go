package svcaccounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var accountAttrs = []string{
	"uid", "cn", "mail", "description", "uidNumber", "gidNumber",
	"homeDirectory", "loginShell", "memberOf", "createTimestamp", "modifyTimestamp",
}

var uidPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// Service manages service accounts under their dedicated OU. Accounts get a
// uidNumber from a separate range so they never collide with people.
type Service struct {
	dir    directory.Client
	ou     string
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewService constructs a service-account service.
func NewService(dir directory.Client, ou string, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{dir: dir, ou: ou, audit: recorder, logger: logger}
}

func (s *Service) accountDN(uid string) string {
	return fmt.Sprintf("uid=%s,%s", uid, s.ou)
}

func entryToAccount(e directory.Entry) ServiceAccount {
	return ServiceAccount{
		DN:              e.DN,
		UID:             e.First("uid"),
		CN:              e.First("cn"),
		Mail:            e.First("mail"),
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

// List returns service accounts, optionally narrowed by a substring search
// over uid, cn and description.
func (s *Service) List(ctx context.Context, search string) ([]ServiceAccount, error) {
	filter := "(objectClass=posixAccount)"
	if search != "" {
		escaped := directory.EscapeFilter(search)
		filter = fmt.Sprintf("(&(objectClass=posixAccount)(|(uid=*%s*)(cn=*%s*)(description=*%s*)))", escaped, escaped, escaped)
	}
	entries, err := s.dir.Search(ctx, s.ou, filter, accountAttrs)
	if err != nil {
		return nil, err
	}
	accounts := make([]ServiceAccount, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, entryToAccount(e))
	}
	return accounts, nil
}

// Get fetches one service account by uid.
func (s *Service) Get(ctx context.Context, uid string) (ServiceAccount, error) {
	filter := fmt.Sprintf("(uid=%s)", directory.EscapeFilter(uid))
	entries, err := s.dir.Search(ctx, s.ou, filter, accountAttrs)
	if err != nil {
		return ServiceAccount{}, err
	}
	if len(entries) == 0 {
		return ServiceAccount{}, fmt.Errorf("%w: service account %s", shared.ErrNotFound, uid)
	}
	return entryToAccount(entries[0]), nil
}

func (s *Service) nextUIDNumber(ctx context.Context) (int, error) {
	entries, err := s.dir.Search(ctx, s.ou, "(objectClass=posixAccount)", []string{"uidNumber"})
	if err != nil {
		return 0, err
	}
	max := 8999
	for _, e := range entries {
		if n := e.Int("uidNumber"); n > max {
			max = n
		}
	}
	return max + 1, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create adds a service account and returns it together with a freshly
// generated secret. The secret is never recoverable afterwards, only
// resettable.
func (s *Service) Create(ctx context.Context, p CreateParams, actor string) (CreatedServiceAccount, error) {
	if !uidPattern.MatchString(p.UID) {
		return CreatedServiceAccount{}, fmt.Errorf("%w: account name must start with a letter and contain only lowercase letters, numbers, dots, hyphens and underscores", shared.ErrValidation)
	}
	if p.UIDNumber == 0 {
		next, err := s.nextUIDNumber(ctx)
		if err != nil {
			return CreatedServiceAccount{}, err
		}
		p.UIDNumber = next
	}
	if p.GIDNumber == 0 {
		p.GIDNumber = p.UIDNumber
	}
	if p.LoginShell == "" {
		p.LoginShell = "/bin/false"
	}
	if p.Description == "" {
		p.Description = "Service account"
	}

	secret, err := generateSecret()
	if err != nil {
		return CreatedServiceAccount{}, err
	}
	hash, err := auth.HashPassword(secret)
	if err != nil {
		return CreatedServiceAccount{}, err
	}

	attrs := map[string][]string{
		"objectClass":   {"inetOrgPerson", "posixAccount", "top"},
		"uid":           {p.UID},
		"cn":            {p.CN},
		"sn":            {p.CN},
		"uidNumber":     {fmt.Sprint(p.UIDNumber)},
		"gidNumber":     {fmt.Sprint(p.GIDNumber)},
		"homeDirectory": {fmt.Sprintf("/srv/%s", p.UID)},
		"loginShell":    {p.LoginShell},
		"description":   {p.Description},
		"userPassword":  {hash},
	}
	if p.Mail != "" {
		attrs["mail"] = []string{p.Mail}
	}

	if err := s.dir.AddEntry(ctx, s.accountDN(p.UID), attrs); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "service_account", p.UID, actor, "failure", map[string]any{"error": err.Error()})
		return CreatedServiceAccount{}, err
	}
	s.logger.Info("service account created", slog.String("uid", p.UID), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "service_account", p.UID, actor, "success", map[string]any{"uidNumber": p.UIDNumber})

	account, err := s.Get(ctx, p.UID)
	if err != nil {
		return CreatedServiceAccount{}, err
	}
	return CreatedServiceAccount{ServiceAccount: account, Secret: secret}, nil
}

// Update replaces the provided attributes on an existing service account.
func (s *Service) Update(ctx context.Context, uid string, p UpdateParams, actor string) (ServiceAccount, error) {
	mods := []directory.Modification{}
	changed := map[string]any{}
	if p.CN != nil {
		mods = append(mods, directory.Replace("cn", *p.CN))
		changed["cn"] = *p.CN
	}
	if p.Mail != nil {
		mods = append(mods, directory.Replace("mail", *p.Mail))
		changed["mail"] = *p.Mail
	}
	if p.Description != nil {
		mods = append(mods, directory.Replace("description", *p.Description))
		changed["description"] = *p.Description
	}
	if len(mods) == 0 {
		return s.Get(ctx, uid)
	}

	if err := s.dir.ModifyEntry(ctx, s.accountDN(uid), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "service_account", uid, actor, "failure", map[string]any{"error": err.Error()})
		return ServiceAccount{}, err
	}
	s.logger.Info("service account updated", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "service_account", uid, actor, "success", changed)
	return s.Get(ctx, uid)
}

// Delete removes a service account entry.
func (s *Service) Delete(ctx context.Context, uid string, actor string) error {
	if err := s.dir.DeleteEntry(ctx, s.accountDN(uid)); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "service_account", uid, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.logger.Info("service account deleted", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "service_account", uid, actor, "success", nil)
	return nil
}

// ResetSecret replaces the account secret with a freshly generated one and
// returns it. The previous secret stops working immediately.
func (s *Service) ResetSecret(ctx context.Context, uid string, actor string) (string, error) {
	secret, err := generateSecret()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(secret)
	if err != nil {
		return "", err
	}
	mods := []directory.Modification{directory.Replace("userPassword", hash)}
	if err := s.dir.ModifyEntry(ctx, s.accountDN(uid), mods); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "service_account", uid, actor, "failure", map[string]any{"action": "secret_reset", "error": err.Error()})
		return "", err
	}
	s.logger.Info("service account secret reset", slog.String("uid", uid), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionUpdate, "service_account", uid, actor, "success", map[string]any{"action": "secret_reset"})
	return secret, nil
}
