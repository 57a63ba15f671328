package response

import (
	"strconv"
	"strings"

	"github.com/saiset-co/sai-router/types"
)

const (
	QueryPage = "page"
	QuerySize = "size"
)

type PagedResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalCount int
}

// TotalPages never reports less than one page, so an empty collection still
// has a first (and last) page.
func (p PagedResult[T]) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount <= 0 {
		return 1
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type PageLinks struct {
	Self  string `json:"self"`
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

type pagedBody[T any] struct {
	Data  []T       `json:"data"`
	Meta  PageMeta  `json:"meta"`
	Links PageLinks `json:"links"`
}

// ParsePagination reads ?page=&size= with page starting at 1. A missing or
// invalid size falls back to defaultSize and is capped at maxSize.
func ParsePagination(ctx *types.RequestCtx, defaultSize, maxSize int) (page, size int) {
	args := ctx.QueryArgs()

	page = args.GetUintOrZero(QueryPage)
	if page < 1 {
		page = 1
	}

	size = args.GetUintOrZero(QuerySize)
	if size < 1 {
		size = defaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}

	return page, size
}

// SendPagedResult writes the page as {"data","meta","links"} together with
// the X-Total-Count, X-Page, X-Page-Size, X-Total-Pages and Link headers.
func SendPagedResult[T any](ctx *types.RequestCtx, result Result[PagedResult[T]]) error {
	if result.IsError {
		return sendFailure(ctx, result.StatusCode, result.Error)
	}

	paged := result.Payload
	links := buildPageLinks(ctx, paged.Page, paged.PageSize, paged.TotalPages())

	header := &ctx.Response.Header
	header.Set("X-Total-Count", strconv.Itoa(paged.TotalCount))
	header.Set("X-Page", strconv.Itoa(paged.Page))
	header.Set("X-Page-Size", strconv.Itoa(paged.PageSize))
	header.Set("X-Total-Pages", strconv.Itoa(paged.TotalPages()))

	if link := linkHeader(links); link != "" {
		header.Set("Link", link)
	}

	items := paged.Items
	if items == nil {
		items = []T{}
	}

	return SendJSON(ctx, result.StatusCode, pagedBody[T]{
		Data: items,
		Meta: PageMeta{
			Page:       paged.Page,
			PageSize:   paged.PageSize,
			TotalCount: paged.TotalCount,
			TotalPages: paged.TotalPages(),
		},
		Links: links,
	})
}

func buildPageLinks(ctx *types.RequestCtx, page, size, totalPages int) PageLinks {
	uri := ctx.URI()
	base := string(uri.Scheme()) + "://" + string(uri.Host()) + ctx.RawPath()

	pageURL := func(p int) string {
		return base + "?" + QueryPage + "=" + strconv.Itoa(p) + "&" + QuerySize + "=" + strconv.Itoa(size)
	}

	links := PageLinks{Self: pageURL(page)}
	if page != 1 {
		links.First = pageURL(1)
	}
	if page > 1 {
		links.Prev = pageURL(page - 1)
	}
	if page < totalPages {
		links.Next = pageURL(page + 1)
	}
	if page != totalPages {
		links.Last = pageURL(totalPages)
	}

	return links
}

func linkHeader(links PageLinks) string {
	parts := make([]string, 0, 4)

	for _, link := range []struct{ url, rel string }{
		{links.Prev, "prev"},
		{links.Next, "next"},
		{links.First, "first"},
		{links.Last, "last"},
	} {
		if link.url != "" {
			parts = append(parts, "<"+link.url+">; rel=\""+link.rel+"\"")
		}
	}

	return strings.Join(parts, ", ")
}
