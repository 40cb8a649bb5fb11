// Package router assembles the gin engine of the order API.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIPrefix is the path every route group is mounted under
const APIPrefix = "/api/v1"

// Route is a method and path relative to the mount point
type Route struct {
	Method string
	Path   string
}

type endpoint struct {
	Route
	handlers []gin.HandlerFunc
}

// RouteGroup declares the routes of one area of the API and the middleware
// they share. Nothing touches the engine until the group is mounted.
type RouteGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	endpoints  []endpoint
	children   []*RouteGroup
}

// NewRouteGroup declares a group served under prefix
func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{name: name, prefix: prefix}
}

func (g *RouteGroup) Name() string { return g.name }

// Use appends middleware run for every route of the group and its children
func (g *RouteGroup) Use(middleware ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle declares a route
func (g *RouteGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *RouteGroup {
	g.endpoints = append(g.endpoints, endpoint{
		Route:    Route{Method: method, Path: relativePath},
		handlers: handlers,
	})
	return g
}

func (g *RouteGroup) GET(p string, h ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodGet, p, h...)
}

func (g *RouteGroup) POST(p string, h ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodPost, p, h...)
}

func (g *RouteGroup) PUT(p string, h ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodPut, p, h...)
}

func (g *RouteGroup) PATCH(p string, h ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodPatch, p, h...)
}

func (g *RouteGroup) DELETE(p string, h ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodDelete, p, h...)
}

// Group declares a child group below g. The child runs g's middleware first.
func (g *RouteGroup) Group(name, prefix string) *RouteGroup {
	child := NewRouteGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

// Routes lists every route of the group and its children, prefixed with the
// group's own prefix
func (g *RouteGroup) Routes() []Route {
	out := make([]Route, 0, len(g.endpoints))
	for _, e := range g.endpoints {
		out = append(out, Route{Method: e.Method, Path: path.Join("/", g.prefix, e.Path)})
	}
	for _, child := range g.children {
		for _, r := range child.Routes() {
			out = append(out, Route{Method: r.Method, Path: path.Join("/", g.prefix, r.Path)})
		}
	}
	return out
}

func (g *RouteGroup) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, e := range g.endpoints {
		rg.Handle(e.Method, e.Path, e.handlers...)
	}
	for _, child := range g.children {
		child.mount(rg)
	}
}

// Mount registers groups on engine under APIPrefix
func Mount(engine *gin.Engine, groups ...*RouteGroup) {
	api := engine.Group(APIPrefix)
	for _, g := range groups {
		g.mount(api)
	}
}
