package models

import (
	"time"

	"gorm.io/datatypes"
)

// ItemTypeENUMType item type enum type
type ItemTypeENUMType string

const (
	// ItemTypeText a free-form text note
	ItemTypeText ItemTypeENUMType = "text"
	// ItemTypeSecret an opaque secret value
	ItemTypeSecret ItemTypeENUMType = "secret"
	// ItemTypeAPIKey an API key credential
	ItemTypeAPIKey ItemTypeENUMType = "api_key"
	// ItemTypeCode a code snippet
	ItemTypeCode ItemTypeENUMType = "code"
	// ItemTypeFile an externally stored file payload
	ItemTypeFile ItemTypeENUMType = "file"
)

// Item one typed entry of an account's vault
//
// Content is only ever stored encrypted. For `file` items the payload lives
// outside this table and EncContent stays empty; FileEncrypted tracks the
// at-rest encryption status of the external payload instead.
type Item struct {
	// ID item ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// Name item name
	Name string `json:"name" gorm:"column:name;not null" validate:"required"`

	// Type the item type
	Type ItemTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,item_type"`

	// EncContent the encrypted item content. Self-contained sealed blob;
	// everything needed for decryption except the key is embedded.
	EncContent []byte `json:"enc_content" gorm:"column:enc_content;default:null"`

	// FileEncrypted whether the external file payload is encrypted at rest
	FileEncrypted bool `json:"file_encrypted" gorm:"column:file_encrypted;not null;default:false"`

	// ContentHash hash of the current plaintext content, used to detect
	// no-op content updates without decrypting
	ContentHash string `json:"content_hash" gorm:"column:content_hash;default:null"`

	// FolderID the containing folder
	FolderID string `json:"folder_id" gorm:"column:folder_id;not null" validate:"required,uuid_rfc4122"`

	// AccountID the owning account
	AccountID string `json:"account_id" gorm:"column:account_id;not null" validate:"required,uuid_rfc4122"`

	// Tags free-form tag set
	Tags datatypes.JSON `json:"tags,omitempty" gorm:"column:tags;default:null"`

	// Pinned whether the item is pinned
	Pinned bool `json:"pinned" gorm:"column:pinned;not null;default:false"`

	// AccessCount number of times the item content was read
	AccessCount int64 `json:"access_count" gorm:"column:access_count;not null;default:0"`

	// LastAccessedAt timestamp of the most recent content read
	LastAccessedAt *time.Time `json:"last_accessed_at" gorm:"column:last_accessed_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemVersion one immutable historical snapshot of an item's encrypted content
type ItemVersion struct {
	// ID item version ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// ItemID the parent item
	ItemID string `json:"item_id" gorm:"column:item_id;not null" validate:"required,uuid_rfc4122"`

	// VersionNum per-item version number. Gapless and strictly increasing,
	// starting at 1.
	VersionNum int64 `json:"version_num" gorm:"column:version_num;not null" validate:"required,min=1"`

	// EncContent the encrypted content snapshot
	EncContent []byte `json:"enc_content" gorm:"column:enc_content;not null" validate:"required"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}
