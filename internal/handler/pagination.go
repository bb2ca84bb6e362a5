package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

// DefaultPageSize is the page size used when page_size is absent
const DefaultPageSize = 100

// MaxPageSize caps page_size
const MaxPageSize = 1000

// Page is a page-number paginated listing
type Page struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

type pageRequest struct {
	number int
	size   int
}

func (p pageRequest) offset() int { return (p.number - 1) * p.size }

// errInvalidPage is answered as 404 {"detail": "Invalid page."}
type errInvalidPage struct{}

func (errInvalidPage) Error() string { return "Invalid page." }

func parsePage(c echo.Context) (pageRequest, error) {
	p := pageRequest{number: 1, size: DefaultPageSize}
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, errInvalidPage{}
		}
		p.number = n
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.size = n
		}
		if p.size > MaxPageSize {
			p.size = MaxPageSize
		}
	}
	return p, nil
}

// newPage builds the envelope; a page past the end (other than page 1) is invalid
func newPage(c echo.Context, p pageRequest, total int64, results interface{}) (*Page, error) {
	if p.number > 1 && int64(p.offset()) >= total {
		return nil, errInvalidPage{}
	}
	page := &Page{Count: total, Results: results}
	if int64(p.number*p.size) < total {
		page.Next = pageURL(c, p.number+1)
	}
	if p.number > 1 {
		page.Previous = pageURL(c, p.number-1)
	}
	return page, nil
}

func pageURL(c echo.Context, number int) *string {
	req := c.Request()
	u := url.URL{
		Scheme: c.Scheme(),
		Host:   req.Host,
		Path:   req.URL.Path,
	}
	q := req.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

func invalidPage(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"detail": "Invalid page."})
}
