package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/models"
)

const (
	graphUsersURL = "https://graph.microsoft.com/v1.0/users"
	graphScope    = "https://graph.microsoft.com/.default"
)

// ErrGraphNotConfigured is returned when Azure credentials are missing.
var ErrGraphNotConfigured = errors.New("missing Azure credentials: set AZURE_CLIENT_ID, AZURE_CLIENT_SECRET and AZURE_TENANT_ID")

type graphUser struct {
	GivenName         *string `json:"givenName"`
	Surname           *string `json:"surname"`
	UserPrincipalName *string `json:"userPrincipalName"`
	Department        *string `json:"department"`
	OfficeLocation    *string `json:"officeLocation"`
}

type graphPage struct {
	Value    []graphUser `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// GraphClient lists employees through the Microsoft Graph users API.
type GraphClient struct {
	http     *http.Client
	usersURL string
	site     string
	domain   string
}

// NewGraphClient authenticates with the client credentials flow.
func NewGraphClient(ctx context.Context, cfg config.GraphConfig) (*GraphClient, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrGraphNotConfigured
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token",
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return NewGraphClientWithHTTP(cc.Client(ctx), graphUsersURL, cfg.SiteFilter, cfg.DomainFilter), nil
}

// NewGraphClientWithHTTP uses an already authenticated client.
func NewGraphClientWithHTTP(hc *http.Client, usersURL, siteFilter, domainFilter string) *GraphClient {
	domain := strings.ToLower(strings.TrimSpace(domainFilter))
	if domain != "" && !strings.HasPrefix(domain, "@") {
		domain = "@" + domain
	}
	return &GraphClient{http: hc, usersURL: usersURL, site: strings.TrimSpace(siteFilter), domain: domain}
}

// Employees fetches every page of users, keeps those matching the site
// and domain filters, and sorts them by last then first name.
func (g *GraphClient) Employees(ctx context.Context) ([]models.Employee, error) {
	q := url.Values{}
	q.Set("$select", "givenName,surname,userPrincipalName,department,officeLocation")
	q.Set("$top", "999")
	next := g.usersURL + "?" + q.Encode()

	var out []models.Employee
	for next != "" {
		page, err := g.fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, u := range page.Value {
			if !g.matches(u) {
				continue
			}
			out = append(out, models.Employee{
				FirstName:  models.Deref(u.GivenName),
				LastName:   models.Deref(u.Surname),
				Email:      models.Deref(u.UserPrincipalName),
				Department: models.Deref(u.Department),
			})
		}
		next = page.NextLink
	}

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].LastName), strings.ToLower(out[j].LastName)
		if li != lj {
			return li < lj
		}
		return strings.ToLower(out[i].FirstName) < strings.ToLower(out[j].FirstName)
	})
	return out, nil
}

func (g *GraphClient) matches(u graphUser) bool {
	if g.site != "" && models.Deref(u.OfficeLocation) != g.site {
		return false
	}
	if g.domain != "" && !strings.HasSuffix(strings.ToLower(models.Deref(u.UserPrincipalName)), g.domain) {
		return false
	}
	return true
}

func (g *GraphClient) fetch(ctx context.Context, link string) (*graphPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.Wrap(err, "graph request")
	}
	req.Header.Set("Accept", "application/json")
	res, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "graph users")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, errors.Errorf("graph users: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var page graphPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "decode graph users")
	}
	return &page, nil
}
