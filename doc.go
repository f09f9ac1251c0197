// Package tablekit exposes database tables as uniform CRUD-plus-query
// services over PostgreSQL, MySQL and SQLite.
//
// A Service wraps one table behind a fixed set of operations (Find, Get,
// Create, Update, Patch, Remove, Upsert and their bulk variants) addressed
// by a small query language: column predicates with operators such as $gt,
// $in or $like, boolean composition with $and/$or, dotted paths into
// declared relations, and the reserved filters $select, $sort, $limit and
// $skip. Statements are assembled through a SQL builder, never by string
// interpolation, and every operation reports the written or fetched rows
// back as plain maps.
//
// Basic usage:
//
//	drv, err := entsql.Open("postgres", dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := tablekit.NewService(tablekit.Options{
//	    Driver: drv,
//	    Table:  "messages",
//	    Multi:  tablekit.Multi{Patch: true, Remove: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	recs, err := svc.Find(ctx, tablekit.Query{
//	    Where: tablekit.Where{"counter": tablekit.Where{"$gt": 10}},
//	    Sort:  []tablekit.Sort{{Field: "counter", Desc: true}},
//	    Limit: tablekit.Int(20),
//	})
//
// Dialect differences (RETURNING support, array operators, NULLS ordering,
// boolean encoding) are absorbed inside the service; callers see one
// behavior. Writes run inside the transaction attached to the context via
// Begin, if any, so several services can share one atomic unit of work.
package tablekit
