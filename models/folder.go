package models

import "time"

// RootFolderName the reserved name of an account's root folder
//
// Exactly one folder per account carries this name with a nil parent. It is
// created at registration and can never be deleted.
const RootFolderName = "Root"

// Folder a node in an account's folder tree
type Folder struct {
	// ID folder ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// Name folder name. Unique among siblings under the same parent.
	Name string `json:"name" gorm:"column:name;not null" validate:"required"`

	// ParentID the parent folder. Nil only for the account's root folder.
	ParentID *string `json:"parent_id" gorm:"column:parent_id;default:null" validate:"omitempty,uuid_rfc4122"`

	// AccountID the owning account
	AccountID string `json:"account_id" gorm:"column:account_id;not null" validate:"required,uuid_rfc4122"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot whether this folder is an account root folder
func (f Folder) IsRoot() bool {
	return f.ParentID == nil && f.Name == RootFolderName
}
