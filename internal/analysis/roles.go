package analysis

import "strings"

// Role is a semantic column category inferred from a header name.
type Role string

const (
	RoleAmount   Role = "amount"
	RoleMerchant Role = "merchant"
	RoleCategory Role = "category"
	RoleLocation Role = "location"
	RoleUser     Role = "user"
	RoleDate     Role = "date"
)

// roleKeywords is scanned in order; each role resolves independently.
var roleKeywords = []struct {
	Role     Role
	Keywords []string
}{
	{RoleAmount, []string{"amount", "value", "transaction_amount"}},
	{RoleMerchant, []string{"merchant", "vendor", "store"}},
	{RoleCategory, []string{"category", "type", "transaction_type"}},
	{RoleLocation, []string{"location", "region", "city", "area"}},
	{RoleUser, []string{"user", "customer", "user_id"}},
	{RoleDate, []string{"date", "time", "timestamp"}},
}

// Roles maps each resolved role to its column name. Unresolved roles are absent.
type Roles map[Role]string

// Column returns the column bound to role.
func (r Roles) Column(role Role) (string, bool) {
	c, ok := r[role]
	return c, ok
}

// Has reports whether role resolved to a column.
func (r Roles) Has(role Role) bool {
	_, ok := r[role]
	return ok
}

// ResolveRoles binds each role to the first header column whose lowercased
// name contains one of the role's keywords. A column may serve several roles.
func ResolveRoles(header []string) Roles {
	out := Roles{}
	for _, rk := range roleKeywords {
		if i := matchColumn(header, rk.Keywords); i >= 0 {
			out[rk.Role] = header[i]
		}
	}
	return out
}

func matchColumn(header []string, keywords []string) int {
	for i, col := range header {
		lc := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(lc, kw) {
				return i
			}
		}
	}
	return -1
}
