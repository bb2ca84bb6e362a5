package serializer

import (
	"strings"
	"time"

	"github.com/suteetoe/geoprofile/internal/model"
)

// DateLayout is the wire format of date_of_birth
const DateLayout = "2006-01-02"

// UserPublic is the account as shown to anyone: no credential, no flags, no permissions
type UserPublic struct {
	ID            uint           `json:"id"`
	Email         string         `json:"email"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	DateJoined    time.Time      `json:"date_joined"`
	Country       string         `json:"country"`
	Bio           *string        `json:"bio"`
	PhoneNumber   uint           `json:"phone_number"`
	DateOfBirth   string         `json:"date_of_birth"`
	HomeAddress   model.GeoPoint `json:"home_address"`
	OfficeAddress model.GeoPoint `json:"office_address"`
}

// UserAdmin is every field of the account
type UserAdmin struct {
	UserPublic
	Password        string     `json:"password"`
	LastLogin       *time.Time `json:"last_login"`
	IsActive        bool       `json:"is_active"`
	IsStaff         bool       `json:"is_staff"`
	IsAdmin         bool       `json:"is_admin"`
	IsSuperuser     bool       `json:"is_superuser"`
	Groups          []uint     `json:"groups"`
	UserPermissions []uint     `json:"user_permissions"`
}

// Public renders the public view of u
func Public(u *model.User) UserPublic {
	return UserPublic{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		DateJoined:    u.DateJoined,
		Country:       u.Country,
		Bio:           u.Bio,
		PhoneNumber:   u.PhoneNumber,
		DateOfBirth:   formatDate(u.DateOfBirth),
		HomeAddress:   u.HomeAddress,
		OfficeAddress: u.OfficeAddress,
	}
}

// PublicList renders the public view of every account
func PublicList(users []model.User) []UserPublic {
	out := make([]UserPublic, 0, len(users))
	for i := range users {
		out = append(out, Public(&users[i]))
	}
	return out
}

// Admin renders the admin view of u
func Admin(u *model.User) UserAdmin {
	return UserAdmin{
		UserPublic:      Public(u),
		Password:        u.Password,
		LastLogin:       u.LastLogin,
		IsActive:        u.IsActive,
		IsStaff:         u.IsStaff,
		IsAdmin:         u.IsAdmin,
		IsSuperuser:     u.IsSuperuser,
		Groups:          u.GroupIDs(),
		UserPermissions: u.PermissionIDs(),
	}
}

// ForCaller picks the admin view for privileged callers and the public view otherwise
func ForCaller(u *model.User, privileged bool) interface{} {
	if privileged {
		return Admin(u)
	}
	return Public(u)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// SignupRequest is the self-registration payload: the public fields plus a write-only password
type SignupRequest struct {
	Email         string          `json:"email" validate:"required,email,max=254"`
	Password      string          `json:"password" validate:"required"`
	FirstName     string          `json:"first_name" validate:"max=30"`
	LastName      string          `json:"last_name" validate:"max=30"`
	Country       string          `json:"country" validate:"required,country"`
	Bio           *string         `json:"bio"`
	PhoneNumber   *int64          `json:"phone_number" validate:"required,min=0,max=15"`
	DateOfBirth   string          `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	HomeAddress   *model.GeoPoint `json:"home_address"`
	OfficeAddress *model.GeoPoint `json:"office_address"`
}

func (r *SignupRequest) checkFields(errs ValidationErrors) {
	checkPoint(errs, "home_address", r.HomeAddress)
	checkPoint(errs, "office_address", r.OfficeAddress)
}

// Build creates an active account from the request; the password is set by the caller
func (r *SignupRequest) Build() *model.User {
	u := &model.User{
		Email:     NormalizeEmail(r.Email),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Country:   r.Country,
		Bio:       r.Bio,
		IsActive:  true,
	}
	if r.PhoneNumber != nil {
		u.PhoneNumber = uint(*r.PhoneNumber)
	}
	u.DateOfBirth, _ = time.Parse(DateLayout, r.DateOfBirth)
	if r.HomeAddress != nil {
		u.HomeAddress = *r.HomeAddress
	}
	if r.OfficeAddress != nil {
		u.OfficeAddress = *r.OfficeAddress
	}
	return u
}

// AdminFields are the fields only admins and superusers may write
type AdminFields struct {
	IsActive        *bool   `json:"is_active"`
	IsStaff         *bool   `json:"is_staff"`
	IsAdmin         *bool   `json:"is_admin"`
	IsSuperuser     *bool   `json:"is_superuser"`
	Groups          *[]uint `json:"groups"`
	UserPermissions *[]uint `json:"user_permissions"`
}

// Apply copies the supplied flags onto u. Groups and permissions are applied by the repository.
func (f *AdminFields) Apply(u *model.User) {
	if f.IsActive != nil {
		u.IsActive = *f.IsActive
	}
	if f.IsStaff != nil {
		u.IsStaff = *f.IsStaff
	}
	if f.IsAdmin != nil {
		u.IsAdmin = *f.IsAdmin
	}
	if f.IsSuperuser != nil {
		u.IsSuperuser = *f.IsSuperuser
	}
}

// AdminCreateRequest is the admin-create payload
type AdminCreateRequest struct {
	SignupRequest
	AdminFields
}

// UserUpdateRequest is the PUT/PATCH payload. Absent fields are left unchanged.
type UserUpdateRequest struct {
	Email         *string         `json:"email" validate:"omitempty,email,max=254"`
	Password      *string         `json:"password" validate:"omitempty"`
	FirstName     *string         `json:"first_name" validate:"omitempty,max=30"`
	LastName      *string         `json:"last_name" validate:"omitempty,max=30"`
	Country       *string         `json:"country" validate:"omitempty,country"`
	Bio           *string         `json:"bio"`
	PhoneNumber   *int64          `json:"phone_number" validate:"omitempty,min=0,max=15"`
	DateOfBirth   *string         `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	HomeAddress   *model.GeoPoint `json:"home_address"`
	OfficeAddress *model.GeoPoint `json:"office_address"`
	AdminFields
}

func (r *UserUpdateRequest) checkFields(errs ValidationErrors) {
	checkPoint(errs, "home_address", r.HomeAddress)
	checkPoint(errs, "office_address", r.OfficeAddress)
	if r.Password != nil && *r.Password == "" {
		errs.Add("password", "This field may not be blank.")
	}
}

// Presence lists the fields a full update must carry
func (r *UserUpdateRequest) Presence() Presence {
	return Presence{
		"email":         r.Email != nil,
		"country":       r.Country != nil,
		"phone_number":  r.PhoneNumber != nil,
		"date_of_birth": r.DateOfBirth != nil,
	}
}

// Apply copies the supplied public fields onto u; admin fields only when admin is set.
// The password is handled by the caller.
func (r *UserUpdateRequest) Apply(u *model.User, admin bool) {
	if r.Email != nil {
		u.Email = NormalizeEmail(*r.Email)
	}
	if r.FirstName != nil {
		u.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		u.LastName = *r.LastName
	}
	if r.Country != nil {
		u.Country = *r.Country
	}
	if r.Bio != nil {
		u.Bio = r.Bio
	}
	if r.PhoneNumber != nil {
		u.PhoneNumber = uint(*r.PhoneNumber)
	}
	if r.DateOfBirth != nil {
		if dob, err := time.Parse(DateLayout, *r.DateOfBirth); err == nil {
			u.DateOfBirth = dob
		}
	}
	if r.HomeAddress != nil {
		u.HomeAddress = *r.HomeAddress
	}
	if r.OfficeAddress != nil {
		u.OfficeAddress = *r.OfficeAddress
	}
	if admin {
		r.AdminFields.Apply(u)
	}
}

// NormalizeEmail lowercases the domain part of an email address
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}
