package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ZLLentz/whatrecord/db"
	"github.com/ZLLentz/whatrecord/iocsh"
	"github.com/ZLLentz/whatrecord/macros"
	"github.com/ZLLentz/whatrecord/ports"
)

// registerHandlers builds the dispatch table once at construction: the
// built-in commands by name, env-set hooks, and one generic handler per
// motor-family command that has no specific one.
func (s *State) registerHandlers() {
	s.handlers = map[string]Handler{
		"epicsEnvSet":              s.handleEpicsEnvSet,
		"epicsEnvShow":             s.handleEpicsEnvShow,
		"iocshRegisterVariable":    s.handleIocshRegisterVariable,
		"iocshCmd":                 s.handleIocshCmd,
		"cd":                       s.handleCd,
		"chdir":                    s.handleCd,
		"iocInit":                  s.handleIocInit,
		"dbLoadDatabase":           s.handleDbLoadDatabase,
		"dbLoadRecords":            s.handleDbLoadRecords,
		"dbl":                      s.handleDbl,
		"NDPvaConfigure":           s.handleNDPvaConfigure,
		"drvAsynSerialPortConfigure": s.handleDrvAsynSerialPortConfigure,
		"drvAsynIPPortConfigure":     s.handleDrvAsynIPPortConfigure,
		"asynSetOption":              s.handleAsynSetOption,
		"adsAsynPortDriverConfigure": s.motorWrapped("adsAsynPortDriverConfigure", s.handleAdsAsynPortDriverConfigure),
		"drvAsynMotorConfigure":      s.motorWrapped("drvAsynMotorConfigure", s.handleDrvAsynMotorConfigure),
		"EthercatMCCreateController": s.motorWrapped("EthercatMCCreateController", s.handleEthercatMCCreateController),
	}
	for name, schema := range motorCommands {
		if _, ok := s.handlers[name]; !ok {
			s.handlers[name] = s.genericMotorHandler(name, schema)
		}
	}
}

// arg returns args[i] or the empty string; trailing arguments are optional
// throughout iocsh.
func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func (s *State) handleEpicsEnvSet(args []string) (any, error) {
	variable := arg(args, 0)
	value := arg(args, 1)
	s.Macros.Define(map[string]string{variable: value})

	hook := ""
	if variable == "EPICS_BASE" {
		hook = s.sniffBaseVersion(value)
	}
	return map[string]string{
		"variable": variable,
		"value":    value,
		"hook":     hook,
	}, nil
}

// Site install trees encode the base version in the EPICS_BASE path.
var baseVersionPrefixes = []string{
	"/reg/g/pcds/epics/base/",
	"/cds/group/pcds/epics/base/",
	"/epics/base/",
}

func (s *State) sniffBaseVersion(path string) string {
	for _, prefix := range baseVersionPrefixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		version := strings.TrimPrefix(path, prefix)
		if idx := strings.IndexByte(version, '/'); idx >= 0 {
			version = version[:idx]
		}
		version = strings.TrimPrefix(version, "R")
		if s.Metadata.BaseVersion != "" {
			return fmt.Sprintf("found version (%s) but version already specified: %s",
				version, s.Metadata.BaseVersion)
		}
		s.Metadata.BaseVersion = version
		return "set base version: " + version
	}
	return ""
}

func (s *State) handleEpicsEnvShow(args []string) (any, error) {
	return s.Macros.Flatten(), nil
}

func (s *State) handleIocshRegisterVariable(args []string) (any, error) {
	variable := arg(args, 0)
	value := arg(args, 1)
	s.Variables[variable] = value
	return fmt.Sprintf("registered variable: %q=%q", variable, value), nil
}

func (s *State) handleIocshCmd(args []string) (any, error) {
	return CmdInvocation{
		Context: s.FullLoadContext(),
		Command: arg(args, 0),
	}, nil
}

func (s *State) handleCd(args []string) (any, error) {
	path := s.fixPath(arg(args, 0))
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s.WorkingDirectory = abs
	return "new working directory: " + abs, nil
}

func (s *State) handleIocInit(args []string) (any, error) {
	s.Initialized = true
	return nil, nil
}

func (s *State) handleDbLoadDatabase(args []string) (any, error) {
	if s.Initialized {
		return nil, structuralf("dbLoadDatabase: %w", ErrAlreadyInitialized)
	}
	if s.Schema != nil {
		// Technically allowed by iocsh; the model keeps the first one.
		return "database definition already loaded; keeping the first", nil
	}
	filename, content, err := s.LoadFile(arg(args, 0))
	if err != nil {
		return nil, err
	}
	defs := macros.DefinitionsToDict(arg(args, 2))
	err = s.Macros.WithScope(defs, func() error {
		schema, err := db.ParseSchema(content, filename)
		if err != nil {
			return err
		}
		s.Schema = schema
		return nil
	})
	if err != nil {
		return nil, err
	}
	return "loaded database: " + filename, nil
}

func (s *State) handleDbLoadRecords(args []string) (any, error) {
	if s.Schema == nil {
		return nil, structuralf("dbLoadRecords: %w", ErrSchemaMissing)
	}
	if s.Initialized {
		return nil, structuralf("dbLoadRecords: %w", ErrAlreadyInitialized)
	}
	filename, content, err := s.LoadFile(arg(args, 0))
	if err != nil {
		return nil, err
	}
	defs := macros.DefinitionsToDict(arg(args, 1))

	var database *db.Database
	err = s.Macros.WithScope(defs, func() error {
		var err error
		database, err = db.ParseRecords(content, filename, s.Schema, s.Macros)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}

	context := s.FullLoadContext()
	mergeDatabase(s.Database, database.Records, context)
	mergeDatabase(s.PVADatabase, database.PVAGroups, context)

	return LoadedDatabase{
		Filename:      filename,
		RecordCount:   len(database.Records),
		PVAGroupCount: len(database.PVAGroups),
		Macros:        defs,
		Warnings:      database.Warnings,
	}, nil
}

// mergeDatabase folds one file's parsed records into the global store.
// New records get the script context prepended to their own; re-declared
// records merge fields and append provenance.
func mergeDatabase(global map[string]*db.RecordInstance, parsed map[string]*db.RecordInstance, context iocsh.FullLoadContext) {
	for name, rec := range parsed {
		combined := make(iocsh.FullLoadContext, 0, len(context)+len(rec.Context))
		combined = append(combined, context...)
		combined = append(combined, rec.Context...)
		rec.Context = combined

		if existing, ok := global[name]; ok {
			existing.Merge(rec)
		} else {
			global[name] = rec
		}
	}
}

func (s *State) handleDbl(args []string) (any, error) {
	names := make([]string, 0, len(s.Database))
	for name := range s.Database {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *State) handleNDPvaConfigure(args []string) (any, error) {
	keys := []string{
		"portName", "queueSize", "blockingCallbacks", "NDArrayPort",
		"NDArrayAddr", "pvName", "maxBuffers", "maxMemory", "priority",
		"stackSize",
	}
	pvName := arg(args, 5)
	if pvName == "" {
		return nil, nil
	}
	// Parameters are keyed under the areaDetector plugin namespace.
	metadata := make(map[string]string, len(keys))
	for i, key := range keys {
		metadata["areaDetector."+key] = arg(args, i)
	}
	s.PVADatabase[pvName] = &db.RecordInstance{
		Name:       pvName,
		RecordType: "PVA",
		Fields:     make(map[string]db.Field),
		Context:    s.FullLoadContext(),
		IsPVA:      true,
		Metadata:   metadata,
	}
	return metadata, nil
}

func (s *State) handleDrvAsynSerialPortConfigure(args []string) (any, error) {
	portName := arg(args, 0)
	if portName == "" {
		return nil, nil
	}
	port := ports.New(portName, "serial", s.FullLoadContext())
	port.Metadata = map[string]string{
		"ttyName":       arg(args, 1),
		"priority":      arg(args, 2),
		"noAutoConnect": arg(args, 3),
		"noProcessEos":  arg(args, 4),
	}
	s.Ports.Add(port)
	return nil, nil
}

func (s *State) handleDrvAsynIPPortConfigure(args []string) (any, error) {
	portName := arg(args, 0)
	if portName == "" {
		return nil, nil
	}
	port := ports.New(portName, "ip", s.FullLoadContext())
	port.Metadata = map[string]string{
		"hostInfo":      arg(args, 1),
		"priority":      arg(args, 2),
		"noAutoConnect": arg(args, 3),
		"noProcessEos":  arg(args, 4),
	}
	s.Ports.Add(port)
	return nil, nil
}

func (s *State) handleAdsAsynPortDriverConfigure(args []string) (any, error) {
	portName := arg(args, 0)
	if portName == "" {
		return nil, nil
	}
	port := ports.New(portName, "ads", s.FullLoadContext())
	port.MultiDevice = true
	port.Metadata = map[string]string{
		"ipaddr":  arg(args, 1),
		"amsaddr": arg(args, 2),
		"amsport": arg(args, 3),
	}
	s.Ports.Add(port)
	return nil, nil
}

func (s *State) handleAsynSetOption(args []string) (any, error) {
	name := arg(args, 0)
	port, err := s.Ports.Lookup(name)
	if err != nil {
		return nil, StructuralError{Err: err}
	}
	addr, _ := strconv.Atoi(arg(args, 1))
	port.SetOption(addr, ports.Option{
		Key:     arg(args, 2),
		Value:   arg(args, 3),
		Context: s.FullLoadContext(),
	})
	return nil, nil
}

func (s *State) handleDrvAsynMotorConfigure(args []string) (any, error) {
	portName := arg(args, 0)
	if portName == "" {
		return nil, nil
	}
	port := ports.New(portName, "motor", s.FullLoadContext())
	port.Metadata = map[string]string{
		"driverName": arg(args, 1),
		"cardNum":    arg(args, 2),
		"numAxes":    arg(args, 3),
	}
	s.Ports.Add(port)
	return nil, nil
}

func (s *State) handleEthercatMCCreateController(args []string) (any, error) {
	motorPort := arg(args, 0)
	asynPort := arg(args, 1)
	parent, err := s.Ports.Lookup(asynPort)
	if err != nil {
		return nil, StructuralError{Err: err}
	}
	motor := ports.New(motorPort, "motor", s.FullLoadContext())
	motor.Parent = asynPort
	motor.Metadata = map[string]string{
		"numAxes":      arg(args, 2),
		"movePollRate": arg(args, 3),
		"idlePollRate": arg(args, 4),
	}
	// Reachable both as a motor of its parent and as a top-level port.
	if parent.Motors == nil {
		parent.Motors = make(map[string]string)
	}
	parent.Motors[motorPort] = motorPort
	s.Ports.Add(motor)
	return nil, nil
}
