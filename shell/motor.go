package shell

import (
	"fmt"
	"strings"
)

// ArgSpec is one (name, expected type) pair of a motor-family command
// schema.
type ArgSpec struct {
	Name string
	Type string
}

// motorCommands maps motor-controller configuration commands to their
// argument schemas. All of them share one generic handler; commands with a
// specific handler additionally get the generic diagnostic appended via
// motorWrapped.
var motorCommands = map[string][]ArgSpec{
	"adsAsynPortDriverConfigure": {
		{"portName", "string"}, {"ipaddr", "string"}, {"amsaddr", "string"},
		{"amsport", "int"}, {"asynParamTableSize", "int"}, {"priority", "int"},
		{"noAutoConnect", "int"}, {"defaultSampleTimeMS", "int"},
		{"maxDelayTimeMS", "int"}, {"adsTimeoutMS", "int"},
		{"defaultTimeSource", "string"},
	},
	"drvAsynMotorConfigure": {
		{"portName", "string"}, {"driverName", "string"},
		{"cardNum", "int"}, {"numAxes", "int"},
	},
	"EthercatMCCreateController": {
		{"motorPort", "string"}, {"asynPort", "string"}, {"numAxes", "int"},
		{"movePollRate", "float"}, {"idlePollRate", "float"},
	},
	"EthercatMCCreateAxis": {
		{"motorPort", "string"}, {"axisNumber", "int"},
		{"axisFlags", "int"}, {"axisOptions", "string"},
	},
	"XPSSetup": {
		{"numControllers", "int"},
	},
	"XPSConfig": {
		{"card", "int"}, {"ip", "string"}, {"port", "int"}, {"numAxes", "int"},
		{"movingPollPeriod", "int"}, {"idlePollPeriod", "int"},
	},
	"XPSConfigAxis": {
		{"card", "int"}, {"axis", "int"}, {"positionerName", "string"},
		{"stepsPerUnit", "int"},
	},
	"MAXvSetup": {
		{"numCards", "int"}, {"addrType", "string"}, {"baseAddress", "int"},
		{"vector", "int"}, {"intLevel", "int"}, {"pollRate", "int"},
	},
	"MAXvConfig": {
		{"card", "int"}, {"config", "string"}, {"absEncoder", "int"},
	},
	"smarActMCSCreateController": {
		{"motorPort", "string"}, {"ioPort", "string"}, {"numAxes", "int"},
		{"movingPollPeriod", "float"}, {"idlePollPeriod", "float"},
	},
	"smarActMCSCreateAxis": {
		{"motorPort", "string"}, {"axisNumber", "int"}, {"channel", "int"},
	},
	"motorUtilInit": {
		{"iocName", "string"},
	},
}

// genericMotorHandler zips a command schema with the raw arguments into a
// uniform diagnostic string.
func (s *State) genericMotorHandler(name string, schema []ArgSpec) Handler {
	return func(args []string) (any, error) {
		var lines []string
		for i, spec := range schema {
			if i >= len(args) {
				break
			}
			lines = append(lines, fmt.Sprintf("(%s) %s = %q", spec.Type, spec.Name, args[i]))
		}
		return strings.Join(lines, "\n"), nil
	}
}

// motorWrapped runs a specific handler, then appends the generic schema
// diagnostic to its outcome.
func (s *State) motorWrapped(name string, handler Handler) Handler {
	schema := motorCommands[name]
	return func(args []string) (any, error) {
		specific, err := handler(args)
		if err != nil {
			return nil, err
		}
		generic, _ := s.genericMotorHandler(name, schema)(args)
		if text, ok := specific.(string); ok && text != "" {
			return text + "\n\n" + generic.(string), nil
		}
		return generic, nil
	}
}
