package crud

import (
	"strconv"
	"strings"

	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
)

// Read defaults.
const (
	DefaultOrderBy = "date"
	DefaultLimit   = 24
)

// Clauses shape a Read. The zero value reads the newest DefaultLimit rows.
type Clauses struct {
	// OrderBy is the sort column, DefaultOrderBy when empty.
	OrderBy string

	// Order is "asc" or "desc". Only the first letter counts: empty or
	// starting with d/D sorts descending, anything else ascending.
	Order string

	// Limit is DefaultLimit when zero.
	Limit int

	// Offset, when set, wins over Page.
	Offset *int

	// Page is zero-based; without Offset the read skips Limit*Page rows.
	Page int
}

func (c Clauses) orderBy() string {
	if c.OrderBy == "" {
		return DefaultOrderBy
	}
	return c.OrderBy
}

func (c Clauses) direction() database.SortDirection {
	if c.Order == "" || strings.ToLower(c.Order[:1]) == "d" {
		return database.Desc
	}
	return database.Asc
}

func (c Clauses) limit() int {
	if c.Limit == 0 {
		return DefaultLimit
	}
	return c.Limit
}

func (c Clauses) offset() int {
	if c.Offset != nil {
		return *c.Offset
	}
	return c.limit() * c.Page
}

func (c Clauses) validate() error {
	switch {
	case c.Limit < 0:
		return errs.Newf(errs.ErrKindInvalidInput, "limit must not be negative, got %d", c.Limit)
	case c.Offset != nil && *c.Offset < 0:
		return errs.Newf(errs.ErrKindInvalidInput, "offset must not be negative, got %d", *c.Offset)
	case c.Page < 0:
		return errs.Newf(errs.ErrKindInvalidInput, "page must not be negative, got %d", c.Page)
	}
	return nil
}

// ParseClauses splits string parameters, such as a URL query, into clauses
// and equality filters. order_by, order, limit, offset and page are clauses;
// every other key is a filter.
func ParseClauses(params map[string]string) (map[string]any, Clauses, error) {
	filter := make(map[string]any)
	var c Clauses
	for key, val := range params {
		var err error
		switch key {
		case "order_by":
			c.OrderBy = val
		case "order":
			c.Order = val
		case "limit":
			c.Limit, err = atoi(key, val)
		case "offset":
			var n int
			if n, err = atoi(key, val); err == nil {
				c.Offset = &n
			}
		case "page":
			c.Page, err = atoi(key, val)
		default:
			filter[key] = val
		}
		if err != nil {
			return nil, Clauses{}, err
		}
	}
	return filter, c, c.validate()
}

func atoi(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "%s must be an integer, got %q", key, val)
	}
	return n, nil
}
