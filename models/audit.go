package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// VaultEventTypeENUMType vault event type ENUM value type
type VaultEventTypeENUMType string

const (
	// VaultEventTypeRegisterAccount new account is registered
	VaultEventTypeRegisterAccount VaultEventTypeENUMType = "REGISTER_ACCOUNT"

	// VaultEventTypeAddFolder new folder is created
	VaultEventTypeAddFolder VaultEventTypeENUMType = "ADD_FOLDER"

	// VaultEventTypeDeleteFolder folder is deleted
	VaultEventTypeDeleteFolder VaultEventTypeENUMType = "DELETE_FOLDER"

	// VaultEventTypeAddItem new item is created
	VaultEventTypeAddItem VaultEventTypeENUMType = "ADD_ITEM"

	// VaultEventTypeUpdateItemContent item content is updated
	VaultEventTypeUpdateItemContent VaultEventTypeENUMType = "UPDATE_ITEM_CONTENT"

	// VaultEventTypeDeleteItem item is deleted
	VaultEventTypeDeleteItem VaultEventTypeENUMType = "DELETE_ITEM"

	// VaultEventTypeExportBackup account backup bundle is exported
	VaultEventTypeExportBackup VaultEventTypeENUMType = "EXPORT_BACKUP"

	// VaultEventTypeImportBackup account backup bundle is imported
	VaultEventTypeImportBackup VaultEventTypeENUMType = "IMPORT_BACKUP"
)

// VaultEventAudit recording of events occurring within the vault
type VaultEventAudit struct {
	// ID audit entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// EventType vault event type
	EventType VaultEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,vault_event_type"`
	// AccountID the account the event relates to
	AccountID string `json:"account_id" gorm:"column:account_id;not null" validate:"required,uuid_rfc4122"`
	// Metadata a metadata relating to the event
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (a VaultEventAudit) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	switch a.EventType {
	// Folder related vault audit events
	case VaultEventTypeAddFolder:
		fallthrough
	case VaultEventTypeDeleteFolder:
		var parsed VaultEventFolderRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Item related vault audit events
	case VaultEventTypeAddItem:
		fallthrough
	case VaultEventTypeUpdateItemContent:
		fallthrough
	case VaultEventTypeDeleteItem:
		var parsed VaultEventItemRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Backup related vault audit events
	case VaultEventTypeExportBackup:
		fallthrough
	case VaultEventTypeImportBackup:
		var parsed VaultEventBackupRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)
	}
	return nil, nil
}

// VaultEventFolderRelated vault event metadata related to a folder
type VaultEventFolderRelated struct {
	// FolderID the folder ID
	FolderID string `json:"folder_id" validate:"required,uuid_rfc4122"`
	// FolderName the folder name
	FolderName string `json:"folder_name" validate:"required"`
}

// VaultEventItemRelated vault event metadata related to an item
type VaultEventItemRelated struct {
	// ItemID the item ID
	ItemID string `json:"item_id" validate:"required,uuid_rfc4122"`
	// ItemName the item name
	ItemName string `json:"item_name" validate:"required"`
}

// VaultEventBackupRelated vault event metadata related to backup operations
type VaultEventBackupRelated struct {
	// FolderCount number of folders covered by the backup operation
	FolderCount int `json:"folder_count"`
	// ItemCount number of items covered by the backup operation
	ItemCount int `json:"item_count"`
}
