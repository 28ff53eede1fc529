package models

import (
	"time"

	"gorm.io/datatypes"
)

// BackupBundleFormatVersion the current backup bundle envelope format version
const BackupBundleFormatVersion = "1"

// BackupFileContentSentinel placeholder stored in place of file payloads
//
// File payloads are intentionally excluded from backup bundles; only this
// marker survives the round trip.
const BackupFileContentSentinel = "[file content not included in backup]"

// BackupBundle the outer envelope of an exported account backup
//
// Data is the base64 encoding of one sealed blob (nonce, auth tag, then
// ciphertext) covering the UTF-8 JSON serialization of a BundleSnapshot.
// Exported files may be re-imported weeks later by a different process
// version, so this shape is version-gated rather than changed in place.
type BackupBundle struct {
	// Version bundle envelope format version
	Version string `json:"version" validate:"required"`
	// Encrypted whether Data is encrypted. Always true for bundles this
	// system produces.
	Encrypted bool `json:"encrypted"`
	// Data base64 of the sealed snapshot
	Data string `json:"data" validate:"required"`
}

// BundleSnapshot the decrypted payload of a backup bundle
type BundleSnapshot struct {
	// Version snapshot format version
	Version string `json:"version"`
	// Timestamp export timestamp
	Timestamp time.Time `json:"timestamp"`
	// User identity of the exporting account
	User BundleUser `json:"user"`
	// Folders the account's complete folder set, in creation order
	Folders []BundleFolder `json:"folders"`
	// Items the account's complete item set
	Items []BundleItem `json:"items"`
}

// BundleUser user identity recorded in a snapshot
type BundleUser struct {
	// Email account email
	Email string `json:"email"`
}

// BundleFolder one folder within a snapshot
type BundleFolder struct {
	// ID source-side folder ID. Remapped to a fresh destination ID on import.
	ID string `json:"id"`
	// Name folder name
	Name string `json:"name"`
	// ParentID source-side parent folder ID. Nil for the root folder.
	ParentID *string `json:"parent_id"`
}

// BundleItem one item within a snapshot
type BundleItem struct {
	// ID source-side item ID
	ID string `json:"id"`
	// Name item name
	Name string `json:"name"`
	// Type the item type
	Type ItemTypeENUMType `json:"type"`
	// EncContent the encrypted item content. Empty for `file` items.
	EncContent []byte `json:"enc_content,omitempty"`
	// ContentHash hash of the current plaintext content
	ContentHash string `json:"content_hash,omitempty"`
	// FolderID source-side containing folder ID
	FolderID string `json:"folder_id"`
	// Tags free-form tag set
	Tags datatypes.JSON `json:"tags,omitempty"`
	// Pinned whether the item is pinned
	Pinned bool `json:"pinned"`
	// FileData file payload placeholder. Carries the non-restorable
	// sentinel for `file` items.
	FileData string `json:"file_data,omitempty"`
}
