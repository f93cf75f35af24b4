package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Mountable is anything that can attach its routes to a gin group
type Mountable interface {
	Mount(parent *gin.RouterGroup)
}

// Router collects resources and mounts them under /api/<version>
type Router struct {
	engine    *gin.Engine
	version   string
	apiChain  []gin.HandlerFunc
	resources []Mountable
}

// Option configures a Router
type Option func(*Router)

// WithVersion replaces the default "v1" prefix segment
func WithVersion(version string) Option {
	return func(r *Router) { r.version = version }
}

// WithAPIMiddleware runs mw for versioned routes only; /health and /metrics
// stay outside of it
func WithAPIMiddleware(mw ...gin.HandlerFunc) Option {
	return func(r *Router) { r.apiChain = append(r.apiChain, mw...) }
}

func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add queues resources for Mount
func (r *Router) Add(resources ...Mountable) *Router {
	r.resources = append(r.resources, resources...)
	return r
}

// Mount attaches every queued resource to the engine
func (r *Router) Mount() {
	api := r.engine.Group("/api/"+r.version, r.apiChain...)
	for _, res := range r.resources {
		res.Mount(api)
	}
}

// Resource is a declarative route table rooted at a path prefix. Nested
// resources inherit the parent's prefix and middleware.
type Resource struct {
	prefix   string
	chain    []gin.HandlerFunc
	routes   []route
	children []*Resource
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

// Prefix returns the path the resource is mounted at, relative to its parent
func (res *Resource) Prefix() string { return res.prefix }

// Use appends middleware for every route of the resource and its children
func (res *Resource) Use(mw ...gin.HandlerFunc) *Resource {
	res.chain = append(res.chain, mw...)
	return res
}

// Handle adds a route for an arbitrary method
func (res *Resource) Handle(method, path string, handlers ...gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, route{method: method, path: path, handlers: handlers})
	return res
}

func (res *Resource) GET(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodGet, path, h...)
}

func (res *Resource) POST(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPost, path, h...)
}

func (res *Resource) PUT(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPut, path, h...)
}

func (res *Resource) DELETE(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodDelete, path, h...)
}

// Nest creates a child resource below this one
func (res *Resource) Nest(prefix string) *Resource {
	child := NewResource(prefix)
	res.children = append(res.children, child)
	return child
}

// Mount implements Mountable
func (res *Resource) Mount(parent *gin.RouterGroup) {
	g := parent.Group(res.prefix, res.chain...)
	for _, rt := range res.routes {
		g.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range res.children {
		child.Mount(g)
	}
}
