package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"bus_tracker/internal/apperrors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver and gorm errors onto application errors.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			field := fieldFromConstraint(pqErr.Constraint, pqErr.Table)
			return &apperrors.Error{
				Kind:    apperrors.KindConflict,
				Message: fmt.Sprintf("%s with this %s already exists", entity, field),
				Fields:  []apperrors.FieldError{{Field: field, Message: "already exists"}},
				Err:     err,
			}
		case pqForeignKeyViolation:
			return &apperrors.Error{
				Kind:    apperrors.KindConflict,
				Message: entity + " is referenced by other records",
				Err:     err,
			}
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// fieldFromConstraint turns idx_buses_bus_number on table buses into busNumber.
func fieldFromConstraint(constraint, table string) string {
	col := strings.TrimPrefix(constraint, "idx_")
	if table != "" {
		col = strings.TrimPrefix(col, table+"_")
	}
	col = strings.TrimSuffix(col, "_key")
	if col == "" {
		return "value"
	}
	cols := strings.Split(col, "_")
	for i := 1; i < len(cols); i++ {
		if cols[i] == "" {
			continue
		}
		cols[i] = strings.ToUpper(cols[i][:1]) + cols[i][1:]
	}
	return strings.Join(cols, "")
}
