package policy

import "fmt"

// CatalogVersion identifies the policy table compiled into this build.
const CatalogVersion = "2"

// leadColumns are the lead columns any non-admin role can be granted.
var leadColumns = []string{
	"id", "name", "email", "phone", "company", "title", "status", "source",
	"value", "notes", "owner_id", "created_at", "updated_at", "last_contacted_at",
}

var leadsTable = Table{
	Name: "leads",
	Ownership: Ownership{
		OwnerColumn:          "owner_id",
		KeyColumn:            "id",
		AssignmentTable:      "lead_assignments",
		AssignmentKeyColumn:  "lead_id",
		AssignmentUserColumn: "user_id",
	},
}

// Catalog maps roles to permission profiles and holds the table allow-list.
// It is immutable after NewCatalog returns.
type Catalog struct {
	profiles map[Role]Profile
	tables   map[string]Table
}

// NewCatalog builds the catalog for every known role.
func NewCatalog() *Catalog {
	c := &Catalog{
		profiles: make(map[Role]Profile, len(Roles())),
		tables:   map[string]Table{leadsTable.Name: leadsTable},
	}
	for _, r := range Roles() {
		c.profiles[r] = profileOf(r)
	}
	return c
}

// profileOf must cover every Role. Adding a role means adding a case here.
func profileOf(r Role) Profile {
	switch r {
	case RoleAdmin:
		return Profile{
			Role:    r,
			Allowed: AllColumns(),
			Denied:  Columns(),
			Scope:   Unrestricted,
		}
	case RoleManager:
		return Profile{
			Role:    r,
			Allowed: Columns(leadColumns...),
			Denied:  Columns("internal_notes", "admin_notes"),
			Scope:   Unrestricted,
		}
	case RoleSalesRep, RoleViewer:
		return Profile{
			Role:    r,
			Allowed: Columns(leadColumns...),
			Denied:  Columns("value", "internal_notes", "admin_notes"),
			Scope:   OwnedOrAssigned,
		}
	default:
		panic(fmt.Sprintf("policy: no profile for role %q", r))
	}
}

// Version returns the catalog version.
func (c *Catalog) Version() string {
	return CatalogVersion
}

// ProfileFor returns the profile of a role. Unknown roles fail with
// ErrUnknownRole and must be treated as deny-all.
func (c *Catalog) ProfileFor(role string) (Profile, error) {
	r, err := ParseRole(role)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	p, ok := c.profiles[r]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return p, nil
}

// Table returns the allow-listed table with the given name.
func (c *Catalog) Table(name string) (Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrTableNotAllowlisted, name)
	}
	return t, nil
}

// Tables returns the names of all queryable tables.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	return names
}
