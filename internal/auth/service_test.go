package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/shared"
)

type stubDirectory struct {
	entries  map[string]directory.Entry
	searches map[string][]directory.Entry
	bindErr  error
	binds    []string
}

func (s *stubDirectory) Search(ctx context.Context, baseDN, filter string, attrs []string) ([]directory.Entry, error) {
	return s.searches[filter], nil
}

func (s *stubDirectory) GetEntry(ctx context.Context, dn string, attrs []string) (directory.Entry, error) {
	entry, ok := s.entries[dn]
	if !ok {
		return directory.Entry{}, shared.ErrNotFound
	}
	return entry, nil
}

func (s *stubDirectory) AddEntry(ctx context.Context, dn string, attrs map[string][]string) error {
	return nil
}

func (s *stubDirectory) ModifyEntry(ctx context.Context, dn string, mods []directory.Modification) error {
	return nil
}

func (s *stubDirectory) DeleteEntry(ctx context.Context, dn string) error { return nil }

func (s *stubDirectory) BindAs(ctx context.Context, dn, password string) error {
	s.binds = append(s.binds, dn)
	return s.bindErr
}

func (s *stubDirectory) WhoAmI(ctx context.Context) error { return nil }

type recordedAuth struct {
	username string
	status   string
}

type stubAuthRecorder struct {
	records []recordedAuth
}

func (r *stubAuthRecorder) RecordAuth(ctx context.Context, username, ip, status string, details map[string]any) {
	r.records = append(r.records, recordedAuth{username: username, status: status})
}

type stubFailureCounter struct{ failures int }

func (c *stubFailureCounter) LoginFailure() { c.failures++ }

func jdoeEntry(groups ...string) directory.Entry {
	return directory.Entry{
		DN: "uid=jdoe,ou=people,dc=example,dc=com",
		Attributes: map[string][]string{
			"uid":      {"jdoe"},
			"cn":       {"John Doe"},
			"mail":     {"jdoe@example.com"},
			"memberOf": groups,
		},
	}
}

func newAuthService(t *testing.T, dir directory.Client, recorder AuditRecorder, counter FailureCounter) *Service {
	t.Helper()
	logger := slog.Default()
	codec := newTestCodec(t, time.Hour, 24*time.Hour)
	verifier := NewCredentialVerifier(dir, "ou=people,dc=example,dc=com", logger)
	return NewService(verifier, codec, NewThrottle(nil, 0), recorder, counter, logger)
}

func TestLoginSuccess(t *testing.T) {
	dir := &stubDirectory{
		searches: map[string][]directory.Entry{
			"(uid=jdoe)": {jdoeEntry("cn=ldap-operators,ou=groups,dc=example,dc=com")},
		},
	}
	recorder := &stubAuthRecorder{}
	svc := newAuthService(t, dir, recorder, &stubFailureCounter{})

	pair, err := svc.Login(context.Background(), "jdoe", "secret", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, 3600, pair.ExpiresIn)
	require.Equal(t, []string{"uid=jdoe,ou=people,dc=example,dc=com"}, dir.binds)

	claims, err := svc.codec.Verify(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	require.Equal(t, "jdoe", claims.Subject)
	require.Equal(t, RoleOperator, claims.Role)

	require.Len(t, recorder.records, 1)
	require.Equal(t, "success", recorder.records[0].status)
}

func TestLoginWrongPassword(t *testing.T) {
	dir := &stubDirectory{
		searches: map[string][]directory.Entry{
			"(uid=jdoe)": {jdoeEntry()},
		},
		bindErr: shared.ErrInvalidCredentials,
	}
	recorder := &stubAuthRecorder{}
	counter := &stubFailureCounter{}
	svc := newAuthService(t, dir, recorder, counter)

	_, err := svc.Login(context.Background(), "jdoe", "wrong", "10.0.0.1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Equal(t, 1, counter.failures)
	require.Len(t, recorder.records, 1)
	require.Equal(t, "failure", recorder.records[0].status)
}

func TestLoginUnknownUserIndistinguishable(t *testing.T) {
	dir := &stubDirectory{searches: map[string][]directory.Entry{}}
	svc := newAuthService(t, dir, &stubAuthRecorder{}, &stubFailureCounter{})

	_, err := svc.Login(context.Background(), "ghost", "secret", "10.0.0.1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Empty(t, dir.binds)
}

func TestRefreshRederivesRole(t *testing.T) {
	dir := &stubDirectory{
		searches: map[string][]directory.Entry{
			"(uid=jdoe)": {jdoeEntry("cn=ldap-operators,ou=groups,dc=example,dc=com")},
		},
	}
	svc := newAuthService(t, dir, &stubAuthRecorder{}, &stubFailureCounter{})

	pair, err := svc.Login(context.Background(), "jdoe", "secret", "10.0.0.1")
	require.NoError(t, err)

	// Promote the user in the directory; the next refresh must pick it up.
	dir.searches["(uid=jdoe)"] = []directory.Entry{
		jdoeEntry("cn=ldap-admins,ou=groups,dc=example,dc=com"),
	}

	fresh, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.codec.Verify(fresh.AccessToken, KindAccess)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, claims.Role)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	dir := &stubDirectory{
		searches: map[string][]directory.Entry{
			"(uid=jdoe)": {jdoeEntry()},
		},
	}
	svc := newAuthService(t, dir, &stubAuthRecorder{}, &stubFailureCounter{})

	pair, err := svc.Login(context.Background(), "jdoe", "secret", "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestRefreshDeletedUser(t *testing.T) {
	dir := &stubDirectory{
		searches: map[string][]directory.Entry{
			"(uid=jdoe)": {jdoeEntry()},
		},
	}
	svc := newAuthService(t, dir, &stubAuthRecorder{}, &stubFailureCounter{})

	pair, err := svc.Login(context.Background(), "jdoe", "secret", "10.0.0.1")
	require.NoError(t, err)

	delete(dir.searches, "(uid=jdoe)")
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}
