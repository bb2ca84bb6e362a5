package model

// Document types accepted for identity documents
const (
	DocumentCitizenship = "Citizenship"
	DocumentNID         = "NID"
)

// DocumentTypes lists the valid document_type choices
var DocumentTypes = []string{DocumentCitizenship, DocumentNID}

// Distance units accepted for work distances
const (
	UnitKilometre = "km"
	UnitMile      = "mi"
)

// DistanceUnits lists the valid unit choices
var DistanceUnits = []string{UnitKilometre, UnitMile}

// AreaOfInterest is a free-text interest tag owned by one account
type AreaOfInterest struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   uint   `json:"user" gorm:"index;not null"`
	Interest string `json:"interest" gorm:"type:varchar(150);not null"`
}

// OwnerID returns the owning account id
func (a *AreaOfInterest) OwnerID() uint { return a.UserID }

func (a AreaOfInterest) String() string { return a.Interest }

// WorkDistance is a declared commute distance from a reference point
type WorkDistance struct {
	ID             uint     `json:"id" gorm:"primaryKey"`
	UserID         uint     `json:"user" gorm:"index;not null"`
	Label          string   `json:"label" gorm:"type:varchar(100)"`
	Distance       float64  `json:"distance" gorm:"not null;check:chk_work_distances_distance,distance >= 0"`
	Unit           string   `json:"unit" gorm:"type:varchar(2);not null;default:'km'"`
	ReferencePoint GeoPoint `json:"reference_point" gorm:"not null"`
}

// OwnerID returns the owning account id
func (w *WorkDistance) OwnerID() uint { return w.UserID }

// Document is an uploaded identity document; Path points into the documents/ namespace
type Document struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UserID       uint   `json:"user" gorm:"index;not null"`
	DocumentType string `json:"document_type" gorm:"type:varchar(25);not null"`
	Path         string `json:"document" gorm:"column:document;type:varchar(255);not null"`
}

// OwnerID returns the owning account id
func (d *Document) OwnerID() uint { return d.UserID }

// IsDocumentType reports whether t is a valid document_type choice
func IsDocumentType(t string) bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}
