package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/services"
)

const dateLayout = "2006-01-02"

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("validation failed", apperrors.FieldError{
			Field:   name,
			Message: "must be a positive integer",
		})
	}
	return uint(id), nil
}

// queryParser collects every malformed query parameter so they can be
// reported together.
type queryParser struct {
	c    *gin.Context
	errs apperrors.FieldErrors
}

func newQueryParser(c *gin.Context) *queryParser {
	return &queryParser{c: c}
}

func (q *queryParser) raw(name string) (string, bool) {
	v, ok := q.c.GetQuery(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// positiveInt returns 0 when the parameter is absent.
func (q *queryParser) positiveInt(name string) int {
	v, ok := q.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		q.errs.Add(name, "must be a positive integer")
		return 0
	}
	return n
}

func (q *queryParser) uintPtr(name string) *uint {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		q.errs.Add(name, "must be a positive integer")
		return nil
	}
	id := uint(n)
	return &id
}

func (q *queryParser) floatPtr(name string) *float64 {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.errs.Add(name, "must be a number")
		return nil
	}
	return &f
}

func (q *queryParser) boolPtr(name string) *bool {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.errs.Add(name, "must be true or false")
		return nil
	}
	return &b
}

// timePtr accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (midnight UTC).
func (q *queryParser) timePtr(name string) *time.Time {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return &t
	}
	q.errs.Add(name, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	return nil
}

func (q *queryParser) listParams() services.ListParams {
	search, _ := q.raw("search")
	return services.ListParams{
		Page:   q.positiveInt("page"),
		Limit:  q.positiveInt("limit"),
		Search: search,
	}
}

func (q *queryParser) err() error {
	return q.errs.Err()
}
