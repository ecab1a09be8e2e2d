package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
)

// filterFromQuery reads exclude (repeatable, comma separated), start and end.
func filterFromQuery(r *http.Request) (aggregate.Filter, error) {
	q := r.URL.Query()
	return aggregate.ParseFilter(q["exclude"], q.Get("start"), q.Get("end"))
}

// intParam returns the query value as an int, or def when absent or invalid.
func intParam(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}
