package model

// AppLabel namespaces every permission this service defines.
const AppLabel = "authentication"

// Resource names used in permission codenames.
const (
	ResourceUser           = "user"
	ResourceAreaOfInterest = "areaofinterest"
	ResourceWorkDistance   = "workdistance"
	ResourceDocument       = "document"
)

// Permission is a fine-grained grant named "<app_label>.<codename>"
type Permission struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	AppLabel string `json:"app_label" gorm:"type:varchar(100);not null;uniqueIndex:idx_permission_app_codename"`
	Codename string `json:"codename" gorm:"type:varchar(100);not null;uniqueIndex:idx_permission_app_codename"`
	Name     string `json:"name" gorm:"type:varchar(255)"`
}

// FullName returns the dotted permission name checked by the authorization policy
func (p Permission) FullName() string {
	return p.AppLabel + "." + p.Codename
}

// Group bundles permissions; members inherit them.
type Group struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:varchar(150);uniqueIndex;not null"`
	Permissions []Permission `json:"permissions" gorm:"many2many:group_permissions;constraint:OnDelete:CASCADE"`
}

var permissionActions = []struct {
	codename string
	verb     string
}{
	{"add", "Can add"},
	{"change", "Can change"},
	{"delete", "Can delete"},
	{"view", "Can view"},
}

var permissionResources = []struct {
	name    string
	verbose string
}{
	{ResourceUser, "user"},
	{ResourceAreaOfInterest, "area of interest"},
	{ResourceWorkDistance, "work distance"},
	{ResourceDocument, "document"},
}

// DefaultPermissions lists the add/change/delete/view permissions of every protected resource
func DefaultPermissions() []Permission {
	perms := make([]Permission, 0, len(permissionActions)*len(permissionResources))
	for _, r := range permissionResources {
		for _, a := range permissionActions {
			perms = append(perms, Permission{
				AppLabel: AppLabel,
				Codename: a.codename + "_" + r.name,
				Name:     a.verb + " " + r.verbose,
			})
		}
	}
	return perms
}
