package http

import (
	"encoding/json"
	"net/http"
)

// PaginatedResponse is one page of a listing. Clients request the next page
// while HasMore is set.
type PaginatedResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationMetadata `json:"pagination"`
}

type PaginationMetadata struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// ListResponse is an unpaginated listing such as a ticket's messages.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// WriteJSON encodes v with the given status. Encoding errors after the
// header is sent are dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WritePaginatedSimple expects rows fetched with limit+1; a surplus row sets
// HasMore and is cut from the page.
func WritePaginatedSimple[T any](w http.ResponseWriter, rows []T, limit, offset int) {
	page, more := trimPage(rows, limit)
	WriteJSON(w, http.StatusOK, PaginatedResponse[T]{
		Data:       page,
		Pagination: PaginationMetadata{Limit: limit, Offset: offset, HasMore: more},
	})
}

func WriteList[T any](w http.ResponseWriter, items []T) {
	items = nonNil(items)
	WriteJSON(w, http.StatusOK, ListResponse[T]{Data: items, Count: len(items)})
}

func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if limit >= 0 && len(rows) > limit {
		return rows[:limit], true
	}
	return nonNil(rows), false
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
