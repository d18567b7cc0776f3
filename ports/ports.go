// Package ports models the hardware abstractions registered during IOC
// startup: asyn serial/IP/ADS ports, motor controllers, and their options.
package ports

import (
	"errors"
	"fmt"

	"github.com/ZLLentz/whatrecord/iocsh"
)

var ErrPortNotFound = errors.New("port not found")

// Option is one key/value option set on a port or one of its devices.
type Option struct {
	Key     string                `json:"key"`
	Value   string                `json:"value"`
	Context iocsh.FullLoadContext `json:"context"`
}

// Device is an addressed sub-object of a multi-device port.
type Device struct {
	Addr    int               `json:"addr"`
	Options map[string]Option `json:"options"`
}

// Port is one registered hardware abstraction. Parent names another port in
// the same registry; it is a non-owning back-reference resolved by lookup,
// since a parent may be registered after its children name it.
type Port struct {
	Name        string                `json:"name"`
	Kind        string                `json:"kind"`
	Parent      string                `json:"parent,omitempty"`
	Options     map[string]Option     `json:"options,omitempty"`
	Devices     map[int]*Device       `json:"devices,omitempty"`
	Motors      map[string]string     `json:"motors,omitempty"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
	MultiDevice bool                  `json:"multi_device,omitempty"`
	Context     iocsh.FullLoadContext `json:"context"`
}

func New(name, kind string, ctx iocsh.FullLoadContext) *Port {
	return &Port{
		Name:    name,
		Kind:    kind,
		Options: make(map[string]Option),
		Context: ctx,
	}
}

// SetOption stores an option on the port itself or, for multi-device ports,
// on the device at addr, creating the device on first use.
func (p *Port) SetOption(addr int, opt Option) {
	if !p.MultiDevice {
		p.Options[opt.Key] = opt
		return
	}
	if p.Devices == nil {
		p.Devices = make(map[int]*Device)
	}
	device, ok := p.Devices[addr]
	if !ok {
		device = &Device{
			Addr:    addr,
			Options: make(map[string]Option),
		}
		p.Devices[addr] = device
	}
	device.Options[opt.Key] = opt
}

// Registry is the process-wide port table of one IOC, keyed by unique name.
type Registry map[string]*Port

func (r Registry) Add(p *Port) {
	r[p.Name] = p
}

func (r Registry) Lookup(name string) (*Port, error) {
	port, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}
	return port, nil
}
