package model

import (
	"strings"
	"time"
)

// PhoneNumberMax is the largest phone number value an account may hold.
const PhoneNumberMax = 15

// User represents an account. Email is the identity key.
type User struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Email         string     `json:"email" gorm:"type:varchar(254);not null;uniqueIndex:idx_users_email_lower,expression:LOWER(email)"`
	Password      string     `json:"-" gorm:"type:varchar(128);not null"`
	FirstName     string     `json:"first_name" gorm:"type:varchar(30)"`
	LastName      string     `json:"last_name" gorm:"type:varchar(30)"`
	DateJoined    time.Time  `json:"date_joined" gorm:"autoCreateTime"`
	LastLogin     *time.Time `json:"last_login"`
	IsActive      bool       `json:"is_active"`
	IsStaff       bool       `json:"is_staff"`
	IsAdmin       bool       `json:"is_admin"`
	IsSuperuser   bool       `json:"is_superuser"`
	Country       string     `json:"country" gorm:"type:varchar(50);not null"`
	Bio           *string    `json:"bio" gorm:"type:text"`
	PhoneNumber   uint       `json:"phone_number" gorm:"not null;check:chk_users_phone_number,phone_number <= 15"`
	DateOfBirth   time.Time  `json:"date_of_birth" gorm:"type:date;not null;index"`
	HomeAddress   GeoPoint   `json:"home_address" gorm:"not null"`
	OfficeAddress GeoPoint   `json:"office_address" gorm:"not null"`

	Groups          []Group      `json:"groups" gorm:"many2many:user_groups;constraint:OnDelete:CASCADE"`
	UserPermissions []Permission `json:"user_permissions" gorm:"many2many:user_user_permissions;constraint:OnDelete:CASCADE"`

	// Related entities, removed by the database when the account goes away
	Interests     []AreaOfInterest `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	WorkDistances []WorkDistance   `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Documents     []Document       `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// FullName returns the first name plus the last name, with a space in between.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ShortName returns the short name for the user.
func (u *User) ShortName() string {
	return u.FirstName
}

// GroupIDs returns the ids of the groups the user belongs to
func (u *User) GroupIDs() []uint {
	ids := make([]uint, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// PermissionIDs returns the ids of the permissions granted directly to the user
func (u *User) PermissionIDs() []uint {
	ids := make([]uint, 0, len(u.UserPermissions))
	for _, p := range u.UserPermissions {
		ids = append(ids, p.ID)
	}
	return ids
}
