// Package model holds the media domain types shared by storage, crypto,
// imaging and the media service.
package model

import "time"

// Kind is the functional role of a stored file. It drives the storage
// path shape and whether encryption or derivatives apply.
type Kind string

const (
	KindAvatar            Kind = "avatar"
	KindTripCover         Kind = "trip-cover"
	KindTripDocument      Kind = "trip-document"
	KindTripPhoto         Kind = "trip-photo"
	KindActivityImage     Kind = "activity-image"
	KindActivityDocument  Kind = "activity-document"
	KindWishlistItemImage Kind = "wishlist-item-image"
	KindOther             Kind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAvatar, KindTripCover, KindTripDocument, KindTripPhoto,
		KindActivityImage, KindActivityDocument, KindWishlistItemImage, KindOther:
		return true
	}
	return false
}

// IsTripScoped reports whether files of this kind live under a trip folder
// and therefore require a parent id.
func (k Kind) IsTripScoped() bool {
	switch k {
	case KindTripCover, KindTripDocument, KindTripPhoto, KindActivityImage, KindActivityDocument:
		return true
	}
	return false
}

// IsImageOnly reports whether uploads of this kind must carry image content.
func (k Kind) IsImageOnly() bool {
	switch k {
	case KindAvatar, KindTripCover, KindTripPhoto, KindActivityImage, KindWishlistItemImage:
		return true
	}
	return false
}

// Visibility is the access tier of a file record.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	// VisibilityNone marks records that are never served on their own,
	// e.g. superseded trip covers.
	VisibilityNone Visibility = "none"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate || v == VisibilityNone
}

// StorageHealth is the last observed liveness of a record's backend object.
type StorageHealth string

const (
	HealthAvailable   StorageHealth = "available"
	HealthUnavailable StorageHealth = "unavailable"
)

// FileRecord is the persisted metadata of one stored file.
type FileRecord struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"ownerId"`
	ParentID        *string       `json:"parentId,omitempty"`
	FileName        string        `json:"fileName"`
	ContentType     string        `json:"contentType"`
	SizeBytes       int64         `json:"sizeBytes"`
	StoragePath     string        `json:"storagePath"`
	Visibility      Visibility    `json:"visibility"`
	Kind            Kind          `json:"kind"`
	Category        *string       `json:"category,omitempty"`
	StorageHealth   StorageHealth `json:"storageHealth"`
	IsEncrypted     bool          `json:"isEncrypted"`
	EncryptionKeyID *string       `json:"-"`
	HasDerivatives  bool          `json:"hasDerivatives"`
	IsDeleted       bool          `json:"isDeleted"`
	DeletedAt       *time.Time    `json:"deletedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastModifiedAt  time.Time     `json:"lastModifiedAt"`
}

// Clone returns a deep copy of r so cached records are never shared.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.ParentID = cloneString(r.ParentID)
	c.Category = cloneString(r.Category)
	c.EncryptionKeyID = cloneString(r.EncryptionKeyID)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
