package storage

import "errors"

// ErrSettingNotFound is returned when no active model has ever been set
var ErrSettingNotFound = errors.New("active model setting not found")
