package app

import (
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/specialistvlad/computegrid/modules/env_vars"
	"github.com/specialistvlad/computegrid/modules/http_request"
	"github.com/specialistvlad/computegrid/modules/print"
	"github.com/specialistvlad/computegrid/modules/s3"
)

// coreModules is the definitive list of all modules that are compiled into
// the computegrid binary.
func coreModules() []registry.Module {
	return []registry.Module{
		&env_vars.Module{},
		&print.Module{},
		&http_request.Module{},
		&s3.Module{},
	}
}
