package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/soptable/portal/core"
)

const (
	orderingParam = "ordering"
	verboseParam  = "verbose"
	limitParam    = "limit"
)

// Ordering binds `?ordering=-created_at,name`: a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	seen := make(map[string]bool)
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryFlag reports whether a boolean query param is set to a true value ("1", "true"...).
func queryFlag(ctx echo.Context, name string) bool {
	b, err := strconv.ParseBool(ctx.QueryParam(name))
	return err == nil && b
}

// queryInt returns an integer query param, def when absent or malformed.
func queryInt(ctx echo.Context, name string, def int) int {
	n, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil {
		return def
	}
	return n
}
