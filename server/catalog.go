package server

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/observability"
	"github.com/kbukum/extkit/version"
)

// PointView is the JSON rendering of a registered extension point.
type PointView struct {
	Key                string   `json:"key"`
	Singleton          bool     `json:"singleton"`
	PreloadAllowed     bool     `json:"preload_allowed"`
	RequiredCapability string   `json:"required_capability,omitempty"`
	Extensions         []string `json:"extensions"`
}

// ExtensionView is the JSON rendering of a registered extension.
type ExtensionView struct {
	Key          string   `json:"key"`
	Point        string   `json:"point"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies"`
	Capabilities []string `json:"capabilities"`
	Singleton    bool     `json:"singleton"`
	Preloaded    bool     `json:"preloaded"`
	Instantiated bool     `json:"instantiated"`
}

// Catalog serves a read-only view of an extension store.
type Catalog struct {
	store    *extension.Store
	service  string
	checkers []observability.HealthChecker
}

// NewCatalog creates a catalog over store. /health reports the store
// followed by any extra checkers.
func NewCatalog(store *extension.Store, serviceName string, checkers ...observability.HealthChecker) *Catalog {
	return &Catalog{
		store:    store,
		service:  serviceName,
		checkers: append([]observability.HealthChecker{store}, checkers...),
	}
}

// Register mounts the catalog routes on r.
func (cat *Catalog) Register(r gin.IRoutes) {
	r.GET("/health", cat.health)
	r.GET("/points", cat.listPoints)
	r.GET("/points/:key", cat.getPoint)
	r.GET("/extensions", cat.listExtensions)
	r.GET("/extensions/:key", cat.getExtension)
}

// MountCatalog registers the catalog of store on the server's engine.
func (s *Server) MountCatalog(store *extension.Store, serviceName string, checkers ...observability.HealthChecker) {
	NewCatalog(store, serviceName, checkers...).Register(s.engine)
}

func (cat *Catalog) health(c *gin.Context) {
	sh := observability.NewServiceHealth(cat.service, version.Short()).
		Check(c.Request.Context(), cat.checkers...)
	c.JSON(sh.HTTPStatus(), sh)
}

func (cat *Catalog) listPoints(c *gin.Context) {
	keys := cat.store.Types().Keys()
	views := make([]PointView, 0, len(keys))
	for _, key := range keys {
		policy, err := cat.store.Types().Get(key)
		if err != nil {
			continue
		}
		views = append(views, cat.pointView(policy))
	}
	RespondList(c, views)
}

func (cat *Catalog) getPoint(c *gin.Context) {
	policy, err := cat.store.Types().Get(c.Param("key"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, cat.pointView(policy))
}

// listExtensions supports ?point= and ?capability= filters. Filtering by
// an unregistered point or capability is a 404.
func (cat *Catalog) listExtensions(c *gin.Context) {
	registry := cat.store.Registry()
	var records []*extension.Record

	switch point, capability := c.Query("point"), c.Query("capability"); {
	case point != "":
		if _, err := cat.store.Types().Get(point); err != nil {
			RespondWithError(c, err)
			return
		}
		records = registry.OfType(point)
	case capability != "":
		if _, err := cat.store.Types().ByCapability(capability); err != nil {
			RespondWithError(c, err)
			return
		}
		records = registry.OfCapability(capability)
	default:
		records = registry.All()
	}

	views := make([]ExtensionView, 0, len(records))
	for _, rec := range records {
		views = append(views, cat.extensionView(rec))
	}
	RespondList(c, views)
}

func (cat *Catalog) getExtension(c *gin.Context) {
	rec, err := cat.store.Lookup(c.Param("key"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, cat.extensionView(rec))
}

func (cat *Catalog) pointView(p extension.Policy) PointView {
	records := cat.store.Registry().OfType(p.Key)
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		keys = append(keys, rec.Key())
	}
	return PointView{
		Key:                p.Key,
		Singleton:          p.Singleton,
		PreloadAllowed:     p.PreloadAllowed,
		RequiredCapability: p.RequiredCapability,
		Extensions:         keys,
	}
}

func (cat *Catalog) extensionView(rec *extension.Record) ExtensionView {
	deps := rec.Dependencies()
	if deps == nil {
		deps = []string{}
	}
	caps := rec.Capabilities()
	if caps == nil {
		caps = []string{}
	}
	return ExtensionView{
		Key:          rec.Key(),
		Point:        rec.PointKey(),
		Name:         rec.Name(),
		Version:      rec.Version(),
		Description:  rec.Description(),
		Dependencies: deps,
		Capabilities: caps,
		Singleton:    rec.Singleton(),
		Preloaded:    rec.Preloaded(),
		Instantiated: cat.store.Instantiated(rec.Key()),
	}
}
