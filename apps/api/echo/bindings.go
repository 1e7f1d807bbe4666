package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the ordering query param. Only whitelisted fields reach the
// store; anything else is dropped so the default ordering applies.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !orderingAllowed(field, allowed) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func orderingAllowed(field string, allowed []string) bool {
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}

func bindPages(ctx echo.Context) core.Pages {
	var pages core.Pages
	if n, err := strconv.Atoi(ctx.QueryParam(pageParam)); err == nil {
		pages.Number = n
	}
	if size, err := strconv.Atoi(ctx.QueryParam("page_size")); err == nil {
		pages.Size = size
	}
	pages.Clean()
	return pages
}

// newPage wraps a repository page in the list envelope. The effective page is
// recomputed with the same clamping the repositories apply, so current_page
// always matches the rows returned.
func newPage(ctx echo.Context, pages core.Pages, count int, results interface{}) core.Page {
	pages, totalPages := pages.Clamp(count)
	page := core.Page{
		Count:       count,
		TotalPages:  totalPages,
		CurrentPage: pages.Number,
		Results:     results,
	}
	if pages.Number < totalPages {
		page.Next = pageURL(ctx, pages.Number+1)
	}
	if pages.Number > 1 {
		page.Previous = pageURL(ctx, pages.Number-1)
	}
	return page
}

func pageURL(ctx echo.Context, number int) *string {
	u := *ctx.Request().URL
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(number))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
