// Package directory authenticates users against the corporate LDAP
// directory and reads the staff list from Microsoft Graph.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

var (
	ErrInvalidCredentials   = errors.New("Incorrect Username or Password")
	ErrInvalidPassword      = errors.New("Invalid password.")
	ErrDirectoryUnreachable = errors.New("LDAP connection error. Please ensure you are on the corporate network and try again.")
	ErrUserNotFound         = errors.New("User not found in LDAP")
	ErrNotInGroup           = errors.New("User not in required group")
)

// Profile is what a successful login yields.
type Profile struct {
	Username    string
	DN          string
	DisplayName string
	Email       string
	FirstName   string
	LastName    string
	Department  string
	IsAdmin     bool
}

// AdminChecker reports admin status. It is the only source of IsAdmin.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Authenticator verifies a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Profile, error)
}

// conn is the part of *ldap.Conn the authenticator uses.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
}

// Dialer opens a directory connection.
type Dialer func(url string) (conn, error)

func dialURL(url string) (conn, error) {
	c, err := ldap.DialURL(url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var userAttributes = []string{
	"displayName", "mail", "givenName", "sn", "userPrincipalName", "distinguishedName", "department",
}

// LDAPAuthenticator binds as the user and reads their profile.
type LDAPAuthenticator struct {
	cfg    config.DirectoryConfig
	bypass map[string]string
	admins AdminChecker
	dial   Dialer
	log    logging.Logger
}

var _ Authenticator = (*LDAPAuthenticator)(nil)

// NewLDAPAuthenticator builds an authenticator. The bypass list is honoured
// only when production is false.
func NewLDAPAuthenticator(cfg config.DirectoryConfig, production bool, admins AdminChecker, log logging.Logger) *LDAPAuthenticator {
	if log == nil {
		log = logging.Discard
	}
	a := &LDAPAuthenticator{cfg: cfg, admins: admins, dial: dialURL, log: log}
	if !production {
		a.bypass = cfg.BypassUsers
	}
	return a
}

// WithDialer replaces the connection factory.
func (a *LDAPAuthenticator) WithDialer(d Dialer) *LDAPAuthenticator {
	a.dial = d
	return a
}

// URL returns the directory address.
func (a *LDAPAuthenticator) URL() string {
	scheme := "ldap"
	if a.cfg.UseSSL {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, a.cfg.Host, a.cfg.Port)
}

// QualifyUsername appends the directory domain to bare usernames.
func (a *LDAPAuthenticator) QualifyUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, "@") || a.cfg.Domain == "" {
		return username
	}
	return username + "@" + a.cfg.Domain
}

func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	if hash, ok := a.bypass[strings.ToLower(username)]; ok {
		return a.authenticateBypass(ctx, username, password, hash)
	}

	c, err := a.dial(a.URL())
	if err != nil {
		a.log.Error("ldap dial", err, map[string]interface{}{"url": a.URL()})
		return nil, ErrDirectoryUnreachable
	}
	defer c.Unbind()

	if err := c.Bind(username, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			a.log.Warn("ldap bind rejected", map[string]interface{}{"username": username})
			return nil, ErrInvalidCredentials
		}
		a.log.Error("ldap bind", err, map[string]interface{}{"username": username})
		return nil, ErrDirectoryUnreachable
	}

	res, err := c.Search(ldap.NewSearchRequest(
		a.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=person)(userPrincipalName=%s))", ldap.EscapeFilter(username)),
		userAttributes, nil,
	))
	if err != nil {
		a.log.Error("ldap user search", err, map[string]interface{}{"username": username})
		return nil, ErrDirectoryUnreachable
	}
	if len(res.Entries) == 0 {
		return nil, ErrUserNotFound
	}
	entry := res.Entries[0]
	dn := entry.GetAttributeValue("distinguishedName")
	if dn == "" {
		dn = entry.DN
	}

	if group := a.cfg.RequiredGroup; group != "" {
		res, err := c.Search(ldap.NewSearchRequest(
			a.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
			fmt.Sprintf("(&(objectClass=group)(cn=%s)(member=%s))", ldap.EscapeFilter(group), ldap.EscapeFilter(dn)),
			[]string{"cn"}, nil,
		))
		if err != nil {
			a.log.Error("ldap group search", err, map[string]interface{}{"username": username})
			return nil, ErrDirectoryUnreachable
		}
		if len(res.Entries) == 0 {
			return nil, ErrNotInGroup
		}
	}

	p := &Profile{
		Username:    username,
		DN:          dn,
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		FirstName:   entry.GetAttributeValue("givenName"),
		LastName:    entry.GetAttributeValue("sn"),
		Department:  entry.GetAttributeValue("department"),
	}
	if p.DisplayName == "" {
		p.DisplayName = models.LocalPart(username)
	}
	if p.Email == "" {
		p.Email = username
	}
	p.IsAdmin = a.isAdmin(ctx, username)
	return p, nil
}

func (a *LDAPAuthenticator) authenticateBypass(ctx context.Context, username, password, hash string) (*Profile, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		a.log.Warn("failed bypass login", map[string]interface{}{"username": username})
		return nil, ErrInvalidPassword
	}
	a.log.Info("bypass user authenticated", map[string]interface{}{"username": username})
	return &Profile{
		Username:    username,
		DisplayName: models.LocalPart(username),
		Email:       username,
		FirstName:   "Test",
		LastName:    "User",
		IsAdmin:     a.isAdmin(ctx, username),
	}, nil
}

func (a *LDAPAuthenticator) isAdmin(ctx context.Context, email string) bool {
	if a.admins == nil {
		return false
	}
	ok, err := a.admins.IsAdmin(ctx, email)
	if err != nil {
		a.log.Error("admin lookup", err)
		return false
	}
	return ok
}
