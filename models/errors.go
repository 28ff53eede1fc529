package models

import "errors"

// ErrRootFolderProtected returned when a caller attempts to delete an
// account's root folder
var ErrRootFolderProtected = errors.New("root folder can not be deleted")

// ErrIntegrity a fatal integrity failure: the persisted state violates an
// invariant the rest of the system depends on (e.g. an account without key
// material, or a content append against a nonexistent item). Not a normal
// runtime condition.
var ErrIntegrity = errors.New("vault integrity violation")
