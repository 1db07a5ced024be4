package datasets

import "context"

// This package streams ColabFit property-observation records from the remote
// service and turns them into structures suitable for model training.
//
// Like the CSV-backed datasets this package grew out of, loading is lazy:
// construction only resolves record identifiers, and the actual payloads are
// fetched one batch at a time when a batch is requested.
//
// Layout and intended usage:
//
// Catalog
//   - Sorts the requested dataset identifiers into the canonical DatasetSet
//   - Resolves the record identifiers of those datasets with one request
//   - Exposes Len and Get so a driver can sample positions cheaply
//
// Materialize / MaterializeWith
//   - Fetches one batch of records with one request
//   - Decodes the string-encoded numeric fields of each payload
//   - Builds one Structure per payload, tagged with its dataset index
//   - Optionally hands every Structure to a Converter
//
// Loader
//   - Groups catalog positions into batches, optionally shuffled
//   - Fetches batches from several workers while delivering them in order
//   - Implements the gomlx train.Dataset methods (Name, Yield, Reset)

// Resolver lists the record identifiers belonging to a set of datasets.
type Resolver interface {
	ResolveRecords(ctx context.Context, datasets []string) ([]string, error)
}

// Fetcher fetches decoded record payloads for a batch of record identifiers.
// Payloads come back in whatever order the service chooses.
type Fetcher interface {
	FetchRecords(ctx context.Context, ids []string) ([]RecordPayload, error)
}

// Source is the read side of a Catalog used by iteration drivers.
type Source interface {
	Len() int
	Get(i int) (string, error)
}
