// Package directory wraps the LDAP client behind the small surface the rest
// of the application consumes: search, add, modify, delete and a
// user-credential bind. A single service-account connection is kept per
// process with failover between the primary and secondary servers, matching
// the deployment's two static 389-ds replicas.
package directory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Config carries directory connection settings.
type Config struct {
	PrimaryServer   string
	SecondaryServer string
	BindDN          string
	BindPassword    string
	Timeout         time.Duration
	TLSVerify       bool
	TLSCACert       string
}

// Client is the directory operation surface consumed by the service layer.
type Client interface {
	Search(ctx context.Context, baseDN, filter string, attrs []string) ([]Entry, error)
	GetEntry(ctx context.Context, dn string, attrs []string) (Entry, error)
	AddEntry(ctx context.Context, dn string, attrs map[string][]string) error
	ModifyEntry(ctx context.Context, dn string, mods []Modification) error
	DeleteEntry(ctx context.Context, dn string) error
	BindAs(ctx context.Context, dn, password string) error
	WhoAmI(ctx context.Context) error
}

// Conn manages the long-lived service-account connection.
type Conn struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	conn    *ldap.Conn
	current string
}

// NewConn constructs a connection manager. No connection is made until the
// first operation.
func NewConn(cfg Config, logger *slog.Logger) *Conn {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Conn{cfg: cfg, logger: logger}
}

var _ Client = (*Conn)(nil)

func (c *Conn) dial(server string) (*ldap.Conn, error) {
	opts := []ldap.DialOpt{}
	if strings.HasPrefix(server, "ldaps://") {
		tlsCfg := &tls.Config{InsecureSkipVerify: !c.cfg.TLSVerify}
		if c.cfg.TLSCACert != "" {
			pem, err := os.ReadFile(c.cfg.TLSCACert)
			if err != nil {
				return nil, fmt.Errorf("directory: read ca cert: %w", err)
			}
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(pem)
			tlsCfg.RootCAs = pool
		}
		opts = append(opts, ldap.DialWithTLSConfig(tlsCfg))
	}
	conn, err := ldap.DialURL(server, opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(c.cfg.Timeout)
	return conn, nil
}

// connectLocked establishes a service-account connection, trying the primary
// server first and the secondary on failure. Caller holds c.mu.
func (c *Conn) connectLocked() (*ldap.Conn, error) {
	servers := []string{c.cfg.PrimaryServer}
	if c.cfg.SecondaryServer != "" && c.cfg.SecondaryServer != c.cfg.PrimaryServer {
		servers = append(servers, c.cfg.SecondaryServer)
	}

	var lastErr error
	for _, server := range servers {
		conn, err := c.dial(server)
		if err != nil {
			lastErr = err
			c.logger.Warn("directory connect failed", slog.String("server", server), slog.Any("error", err))
			continue
		}
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			conn.Close()
			lastErr = err
			c.logger.Warn("directory service bind failed", slog.String("server", server), slog.Any("error", err))
			continue
		}
		c.conn = conn
		c.current = server
		c.logger.Info("directory connected", slog.String("server", server))
		return conn, nil
	}
	return nil, fmt.Errorf("directory: all servers failed: %w", mapError(lastErr))
}

func (c *Conn) getLocked() (*ldap.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	return c.connectLocked()
}

func (c *Conn) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.current = ""
	}
}

// do runs op against the shared connection, reconnecting once when the link
// has gone stale.
func (c *Conn) do(ctx context.Context, op func(conn *ldap.Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.getLocked()
	if err != nil {
		return err
	}
	err = op(conn)
	if !isNetworkError(err) {
		return mapError(err)
	}

	c.logger.Warn("directory connection lost, reconnecting", slog.String("server", c.current))
	c.dropLocked()
	conn, err = c.connectLocked()
	if err != nil {
		return err
	}
	return mapError(op(conn))
}

// Search performs a subtree search under baseDN.
func (c *Conn) Search(ctx context.Context, baseDN, filter string, attrs []string) ([]Entry, error) {
	var entries []Entry
	err := c.do(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			0, 0, false, filter, attrs, nil,
		)
		res, err := conn.Search(req)
		if err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				entries = []Entry{}
				return nil
			}
			return err
		}
		entries = make([]Entry, 0, len(res.Entries))
		for _, e := range res.Entries {
			entries = append(entries, fromLDAPEntry(e))
		}
		return nil
	})
	return entries, err
}

// GetEntry fetches a single entry by DN with base scope.
func (c *Conn) GetEntry(ctx context.Context, dn string, attrs []string) (Entry, error) {
	var entry Entry
	err := c.do(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
			1, 0, false, "(objectClass=*)", attrs, nil,
		)
		res, err := conn.Search(req)
		if err != nil {
			return err
		}
		if len(res.Entries) == 0 {
			return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no entry: %s", dn))
		}
		entry = fromLDAPEntry(res.Entries[0])
		return nil
	})
	return entry, err
}

// AddEntry creates a new entry.
func (c *Conn) AddEntry(ctx context.Context, dn string, attrs map[string][]string) error {
	return c.do(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewAddRequest(dn, nil)
		for attr, values := range attrs {
			req.Attribute(attr, values)
		}
		return conn.Add(req)
	})
}

// ModifyEntry applies modifications to an existing entry.
func (c *Conn) ModifyEntry(ctx context.Context, dn string, mods []Modification) error {
	return c.do(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewModifyRequest(dn, nil)
		for _, mod := range mods {
			switch mod.Op {
			case ModReplace:
				req.Replace(mod.Attr, mod.Values)
			case ModAdd:
				req.Add(mod.Attr, mod.Values)
			case ModDelete:
				req.Delete(mod.Attr, mod.Values)
			}
		}
		return conn.Modify(req)
	})
}

// DeleteEntry removes an entry by DN.
func (c *Conn) DeleteEntry(ctx context.Context, dn string) error {
	return c.do(ctx, func(conn *ldap.Conn) error {
		return conn.Del(ldap.NewDelRequest(dn, nil))
	})
}

// BindAs proves possession of a credential by binding as the given DN on a
// throwaway connection. The service-account connection is never reused for
// this. The connection is closed on every exit path.
func (c *Conn) BindAs(ctx context.Context, dn, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if password == "" {
		// An empty password would be an anonymous bind, which LDAP treats as
		// success. Refuse before touching the wire.
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, fmt.Errorf("empty password"))
	}
	conn, err := c.dial(c.cfg.PrimaryServer)
	if err != nil {
		conn, err = c.dial(c.cfg.SecondaryServer)
		if err != nil {
			return mapError(err)
		}
	}
	defer conn.Close()
	return mapError(conn.Bind(dn, password))
}

// WhoAmI probes the service connection, used by health checks.
func (c *Conn) WhoAmI(ctx context.Context) error {
	return c.do(ctx, func(conn *ldap.Conn) error {
		_, err := conn.WhoAmI(nil)
		return err
	})
}

// Close releases the service-account connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

// EscapeFilter escapes a value for embedding in a search filter.
func EscapeFilter(value string) string {
	return ldap.EscapeFilter(value)
}

func fromLDAPEntry(e *ldap.Entry) Entry {
	attrs := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Name] = a.Values
	}
	return Entry{DN: e.DN, Attributes: attrs}
}
