package main

import (
	"github.com/ZLLentz/whatrecord/debugs"
	"github.com/ZLLentz/whatrecord/loaders"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Loaders loaders.Module
	Debugs  debugs.Module
}
