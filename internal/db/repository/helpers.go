// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

// timeLayout is the fixed-width UTC layout used for every timestamp column,
// so lexical comparison in SQL matches chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// created_at defaults are written by SQLite without fractional seconds.
		return time.Parse("2006-01-02 15:04:05", s)
	}
	return t, nil
}

// anchorColumn maps an anchor role to the column it filters on.
func anchorColumn(role domain.AnchorRole) (string, error) {
	switch role {
	case domain.AnchorSource:
		return "source_table", nil
	case domain.AnchorTarget:
		return "target_table", nil
	default:
		return "", domain.ErrValidation("invalid anchor role %q", role)
	}
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}
