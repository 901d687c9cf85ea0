package estimation

import "errors"

var (
	ErrEmptyTemplateName = errors.New("empty-template-name")
	ErrNoOptions         = errors.New("template-without-options")
	ErrEmptyOptionText   = errors.New("empty-option-text")
	ErrDuplicateOption   = errors.New("duplicate-option")
	ErrDuplicateTemplate = errors.New("duplicate-template")
	ErrUnknownDefault    = errors.New("unknown-default-template")
)
