// Package models - hooks.go holds GORM lifecycle hooks that stand in for
// CHECK constraints so every backend validates the same way.
package models

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrInvalidUser wraps User validation failures
var ErrInvalidUser = errors.New("invalid user")

// SupportedLanguages are the interface languages a user can pick
var SupportedLanguages = []string{"en", "tr", "es"}

// IsSupportedLanguage reports whether lang is one of SupportedLanguages
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// BeforeSave validates User before create or update
func (u *User) BeforeSave(*gorm.DB) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username must not be empty", ErrInvalidUser)
	}
	if u.Language == "" {
		u.Language = "en"
	}
	if !IsSupportedLanguage(u.Language) {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidUser, u.Language)
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Role != RoleUser && u.Role != RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	return nil
}

// BeforeSave validates ProblemStep before create or update
func (s *ProblemStep) BeforeSave(*gorm.DB) error {
	if !s.Status.Valid() {
		return fmt.Errorf("unknown step status %q", s.Status)
	}
	if s.StepNumber < 1 {
		return fmt.Errorf("step number must be positive, got %d", s.StepNumber)
	}
	return nil
}

// BeforeSave validates Project before create or update
func (p *Project) BeforeSave(*gorm.DB) error {
	if strings.TrimSpace(p.ProjectNumber) == "" {
		return fmt.Errorf("project number must not be empty")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	return nil
}
