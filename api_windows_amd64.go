package symresolve

import "github.com/carved4/go-symresolve/pkg/resolve"

var GetModuleBase = resolve.GetModuleBase
