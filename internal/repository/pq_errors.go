package repository

import (
	"errors"

	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLの一意制約違反を表すSQLSTATE。
const pqUniqueViolation = "23505"

// isUniqueViolation はerrが一意制約違反かどうかを返す。
// constraintが空でない場合は制約名も一致する必要がある。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
