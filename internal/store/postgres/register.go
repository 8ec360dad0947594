package postgres

import "github.com/XYIAN/form-flow-sub001/internal/store"

func init() {
	// registers the postgres form store factory
	store.Register("postgres", New)
}
