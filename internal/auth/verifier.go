package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

var lookupAttrs = []string{"uid", "cn", "mail", "memberOf"}

// CredentialVerifier proves username/password pairs against the directory.
type CredentialVerifier struct {
	dir      directory.Client
	peopleOU string
	logger   *slog.Logger
}

// NewCredentialVerifier constructs a verifier scoped to the people subtree.
func NewCredentialVerifier(dir directory.Client, peopleOU string, logger *slog.Logger) *CredentialVerifier {
	return &CredentialVerifier{dir: dir, peopleOU: peopleOU, logger: logger}
}

// Verify resolves the entry for username under the people OU and then binds
// as that entry with the supplied password. Lookup misses, ambiguous results,
// wrong passwords and transport failures during the bind all return
// shared.ErrInvalidCredentials; only the internal log distinguishes them.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (Principal, error) {
	if username == "" || password == "" {
		return Principal{}, shared.ErrInvalidCredentials
	}

	filter := fmt.Sprintf("(uid=%s)", directory.EscapeFilter(username))
	entries, err := v.dir.Search(ctx, v.peopleOU, filter, lookupAttrs)
	if err != nil {
		if errors.Is(err, shared.ErrDirectoryUnavailable) {
			// The lookup never saw a credential, so a transport failure here
			// is safe to surface as an outage.
			return Principal{}, err
		}
		v.logger.Error("user lookup failed", slog.String("username", username), slog.Any("error", err))
		return Principal{}, shared.ErrInvalidCredentials
	}
	if len(entries) != 1 {
		v.logger.Warn("user not found or ambiguous",
			slog.String("username", username), slog.Int("matches", len(entries)))
		return Principal{}, shared.ErrInvalidCredentials
	}
	entry := entries[0]

	if err := v.dir.BindAs(ctx, entry.DN, password); err != nil {
		v.logger.Warn("user bind failed", slog.String("username", username), slog.Any("error", err))
		return Principal{}, shared.ErrInvalidCredentials
	}

	return Principal{
		Username:    entry.First("uid"),
		DN:          entry.DN,
		DisplayName: entry.First("cn"),
		Email:       entry.First("mail"),
		Groups:      entry.Values("memberOf"),
	}, nil
}

// Lookup resolves a principal without proving a credential. The refresh flow
// uses it to re-derive role and attributes fresh from the directory.
func (v *CredentialVerifier) Lookup(ctx context.Context, username string) (Principal, error) {
	if username == "" {
		return Principal{}, shared.ErrNotFound
	}
	filter := fmt.Sprintf("(uid=%s)", directory.EscapeFilter(username))
	entries, err := v.dir.Search(ctx, v.peopleOU, filter, lookupAttrs)
	if err != nil {
		return Principal{}, err
	}
	if len(entries) != 1 {
		return Principal{}, shared.ErrNotFound
	}
	entry := entries[0]
	return Principal{
		Username:    entry.First("uid"),
		DN:          entry.DN,
		DisplayName: entry.First("cn"),
		Email:       entry.First("mail"),
		Groups:      entry.Values("memberOf"),
	}, nil
}
