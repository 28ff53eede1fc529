package db

import "github.com/alwitt/coffre/models"

// --------------------------------------------------------------------------------------
// Vault audit events

// VaultEventAuditDBEntry vault audit event DB entry
type VaultEventAuditDBEntry struct {
	models.VaultEventAudit
}

// TableName hard code table name
func (VaultEventAuditDBEntry) TableName() string {
	return "vault_audit_events"
}

// --------------------------------------------------------------------------------------
// Accounts

// AccountDBEntry user account DB entry
type AccountDBEntry struct {
	models.Account
}

// TableName hard code table name
func (AccountDBEntry) TableName() string {
	return "accounts"
}

// --------------------------------------------------------------------------------------
// Folders

// FolderDBEntry folder DB entry
type FolderDBEntry struct {
	models.Folder
	Account AccountDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:AccountID" validate:"-"`
	Parent  *FolderDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:ParentID" validate:"-"`
}

// TableName hard code table name
func (FolderDBEntry) TableName() string {
	return "folders"
}

// --------------------------------------------------------------------------------------
// Items

// ItemDBEntry vault item DB entry
type ItemDBEntry struct {
	models.Item
	Account AccountDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:AccountID" validate:"-"`
	Folder  FolderDBEntry  `gorm:"constraint:OnDelete:CASCADE;foreignKey:FolderID" validate:"-"`
}

// TableName hard code table name
func (ItemDBEntry) TableName() string {
	return "items"
}

// ItemVersionDBEntry item content version DB entry
type ItemVersionDBEntry struct {
	models.ItemVersion
	Item ItemDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:ItemID" validate:"-"`
}

// TableName hard code table name
func (ItemVersionDBEntry) TableName() string {
	return "item_versions"
}
