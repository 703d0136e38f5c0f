// Package option holds composable gorm query modifiers shared by repositories.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryFunc func(*gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Operator is a comparison operator usable in a Condition.
type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

// Condition filters a single column.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause for the condition.
func ApplyOperator(cond Condition) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		switch cond.Operator {
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		case EQ, NEQ, GT, GTE, LT, LTE, LIKE:
			return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
		default:
			return db
		}
	})
}

// WithOrder applies a fixed ORDER BY expression.
func WithOrder(expr string) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(expr)
	})
}
