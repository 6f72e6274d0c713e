// Package api implements the REST API of assetrisk-server.
//
// Routes (all JSON):
//
//	GET    /api/v1/health
//	POST   /api/v1/datasets?name=                 raw CSV body or multipart "file"
//	GET    /api/v1/datasets
//	GET    /api/v1/datasets/{id}
//	DELETE /api/v1/datasets/{id}
//	GET    /api/v1/datasets/{id}/assets?q=&status=&sort=&order=&limit=&offset=
//	GET    /api/v1/datasets/{id}/assets/{assetID}
//	GET    /api/v1/datasets/{id}/kpis
//	GET    /api/v1/datasets/{id}/locations?limit=
//	GET    /api/v1/datasets/{id}/distribution
//	GET    /api/v1/alerts
//
// Upload failures caused by the CSV itself (too short, missing columns, no
// valid rows) return 422 with the pipeline's message verbatim. Bodies over
// the configured limit return 413.
package api
