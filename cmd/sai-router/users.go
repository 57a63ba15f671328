package main

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/middleware"
	"github.com/saiset-co/sai-router/response"
	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/types"
)

var errUserNotFound = errors.New("user not found")

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type userStore struct {
	mu     sync.RWMutex
	nextID int
	users  map[int]user
}

func newUserStore() *userStore {
	return &userStore{nextID: 1, users: make(map[int]user)}
}

func (s *userStore) add(name string) user {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user{ID: s.nextID, Name: name}
	s.users[u.ID] = u
	s.nextID++
	return u
}

func (s *userStore) get(id int) (user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return u, ok
}

func (s *userStore) page(page, size int) ([]user, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]user, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	from := (page - 1) * size
	if from >= len(all) {
		return nil, len(all)
	}
	to := from + size
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], len(all)
}

// registerAPI installs the demo user routes on api.
func registerAPI(api *router.Router, store *userStore) {
	api.Get("/users", types.HandlerFunc(func(ctx *types.RequestCtx) error {
		page, size := response.ParsePagination(ctx, 20, 100)
		items, total := store.page(page, size)

		return response.SendPagedResult(ctx, response.Ok(response.PagedResult[user]{
			Items:      items,
			Page:       page,
			PageSize:   size,
			TotalCount: total,
		}))
	})).
		Get("/users/:id", types.HandlerFunc(func(ctx *types.RequestCtx) error {
			id, err := strconv.Atoi(ctx.Props.Params().Get("id"))
			if err != nil {
				return response.SendResult(ctx, response.Fail[user](fasthttp.StatusBadRequest, err))
			}

			u, ok := store.get(id)
			if !ok {
				return response.SendResult(ctx, response.Fail[user](fasthttp.StatusNotFound, errUserNotFound))
			}
			return response.SendResult(ctx, response.Ok(u))
		})).
		Post("/users", middleware.ReadJSON(), types.HandlerFunc(func(ctx *types.RequestCtx) error {
			body, _ := ctx.Props.Get(types.PropBody)
			fields, ok := body.(map[string]interface{})
			name, _ := fields["name"].(string)
			if !ok || name == "" {
				response.SendError(ctx, fasthttp.StatusUnprocessableEntity, "name is required")
				return nil
			}

			return response.SendResult(ctx, response.OkStatus(fasthttp.StatusCreated, store.add(name)))
		})).
		Get("/echo", middleware.ParseQueryString(), types.HandlerFunc(func(ctx *types.RequestCtx) error {
			query, _ := ctx.Props.Get(types.PropQuery)
			return response.SendJSON(ctx, fasthttp.StatusOK, query)
		})).
		EnableParametrizedMatching()
}
