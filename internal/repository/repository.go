// Package repository contains the sqlx persistence layer. Repositories
// return sql.ErrNoRows untouched; services translate it into domain errors.
package repository

import (
	"database/sql"
	"errors"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
