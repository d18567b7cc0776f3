package debugs

import (
	"github.com/ZLLentz/whatrecord/logs"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}
