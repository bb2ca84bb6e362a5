package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrUnknownOwner      = errors.New("owner account does not exist")
	ErrUnknownGroup      = errors.New("unknown group")
	ErrUnknownPermission = errors.New("unknown permission")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrUnknownOwner
	}
	return err
}
