package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"account_state", validateAccountStateType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"item_type", validateItemType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"vault_event_type", validateVaultEventType,
	); err != nil {
		return err
	}

	return nil
}

func validateAccountStateType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch AccountStateENUMType(fl.Field().String()) {
	case AccountStateActive:
		fallthrough
	case AccountStateLocked:
		return true
	}
	return false
}

func validateItemType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ItemTypeENUMType(fl.Field().String()) {
	case ItemTypeText:
		fallthrough
	case ItemTypeSecret:
		fallthrough
	case ItemTypeAPIKey:
		fallthrough
	case ItemTypeCode:
		fallthrough
	case ItemTypeFile:
		return true
	}
	return false
}

func validateVaultEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch VaultEventTypeENUMType(fl.Field().String()) {
	case VaultEventTypeRegisterAccount:
		fallthrough
	case VaultEventTypeAddFolder:
		fallthrough
	case VaultEventTypeDeleteFolder:
		fallthrough
	case VaultEventTypeAddItem:
		fallthrough
	case VaultEventTypeUpdateItemContent:
		fallthrough
	case VaultEventTypeDeleteItem:
		fallthrough
	case VaultEventTypeExportBackup:
		fallthrough
	case VaultEventTypeImportBackup:
		return true
	}
	return false
}
