package model

import "errors"

// Ошибки уровня хранилища, которые сервисы различают явно
var (
	ErrReviewExists = errors.New("review already exists for this expert")
)
