package tablekit

import (
	"errors"
	"log/slog"
	"time"

	entdialect "entgo.io/ent/dialect"

	"github.com/tablekit/tablekit/dialect"
)

// Paginate bounds the page size of FindPage: Default applies when the query
// carries no $limit, Max caps whatever the caller asks for.
type Paginate struct {
	Default int
	Max     int
}

// Multi enables the bulk (query-addressed) variants of create, patch and
// remove. Disabled operations fail with a MethodNotAllowedError.
type Multi struct {
	Create bool
	Patch  bool
	Remove bool
}

// Property maps a caller-facing field name to a physical column, for schemas
// where the two differ or where a joined query would otherwise be ambiguous.
type Property struct {
	Column string
}

// Options configures a Service. Driver and Table are required; everything
// else has usable defaults.
type Options struct {
	// Driver is the shared connection handle, typically *entsql.Driver from
	// entgo.io/ent/dialect/sql. It may be shared by any number of services.
	Driver entdialect.Driver

	// Table is the database table this service exposes.
	Table string

	// IDField is the identifier column. Defaults to "id".
	IDField string

	// Dialect names the target engine. When zero it is detected from the
	// driver's reported dialect name.
	Dialect dialect.Dialect

	// Relations declares the one-hop joins addressable from queries.
	Relations map[string]Relation

	// Properties maps field names to physical columns.
	Properties map[string]Property

	// Multi gates the bulk variants of the write operations.
	Multi Multi

	// Paginate sets the page-size bounds for FindPage.
	Paginate *Paginate

	// Cache, when set, caches Find results until the next write to the
	// table. CacheTTL bounds entry lifetime; zero means no expiry.
	Cache    Cache
	CacheTTL time.Duration

	// Stats, when set, accumulates statement counters for this service.
	// Several services may share one instance.
	Stats *Stats

	// SlowThreshold is the duration above which a statement counts as slow
	// and fires SlowQueryHook. Defaults to 100ms.
	SlowThreshold time.Duration

	// SlowQueryHook is called for statements exceeding SlowThreshold.
	SlowQueryHook SlowQueryHook

	// Logger, when set, logs every statement at debug level.
	Logger *slog.Logger
}

// Service exposes a uniform CRUD-plus-query surface over one table. It is
// safe for concurrent use; the driver handle may be shared across services.
type Service struct {
	drv        entdialect.Driver
	table      string
	idField    string
	dialect    dialect.Dialect
	relations  map[string]Relation
	properties map[string]Property
	multi      Multi
	paginate   *Paginate
	cache      Cache
	cacheTTL   time.Duration

	stats         *Stats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	logger        *slog.Logger
}

// NewService validates opts and returns a Service. Missing driver or table
// and unsupported dialects are configuration errors, raised here and never
// at operation time.
func NewService(opts Options) (*Service, error) {
	if opts.Driver == nil {
		return nil, &ConfigError{Option: "driver", Err: errors.New("a database driver is required")}
	}
	if opts.Table == "" {
		return nil, &ConfigError{Option: "table", Err: errors.New("a table name is required")}
	}
	d := opts.Dialect
	if d == "" {
		d = dialect.Detect(opts.Driver.Dialect())
	}
	if !d.Valid() {
		return nil, &ConfigError{Option: "dialect", Err: errors.New("unknown dialect " + d.String())}
	}
	if d == dialect.MSSQL {
		return nil, &ConfigError{Option: "dialect", Err: errors.New("mssql is recognized but not supported by the statement builder")}
	}
	relations, err := validateRelations(opts.Relations)
	if err != nil {
		return nil, err
	}
	idField := opts.IDField
	if idField == "" {
		idField = "id"
	}
	if p := opts.Paginate; p != nil && p.Max > 0 && p.Default > p.Max {
		return nil, &ConfigError{Option: "paginate", Err: errors.New("default page size exceeds max")}
	}
	slowThreshold := opts.SlowThreshold
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &Service{
		drv:        opts.Driver,
		table:      opts.Table,
		idField:    idField,
		dialect:    d,
		relations:  relations,
		properties: opts.Properties,
		multi:      opts.Multi,
		paginate:   opts.Paginate,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,

		stats:         opts.Stats,
		slowThreshold: slowThreshold,
		slowHook:      opts.SlowQueryHook,
		logger:        opts.Logger,
	}, nil
}

// Table returns the table name the service operates on.
func (s *Service) Table() string { return s.table }

// IDField returns the identifier column name.
func (s *Service) IDField() string { return s.idField }

// Dialect returns the engine the service builds statements for.
func (s *Service) Dialect() dialect.Dialect { return s.dialect }

// column resolves a caller-facing field name to its physical column.
func (s *Service) column(field string) string {
	if p, ok := s.properties[field]; ok && p.Column != "" {
		return p.Column
	}
	return field
}
