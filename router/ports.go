// Package router connects the virtual MIDI input to the hardware output.
package router

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Port is the part of a gomidi port the router relies on.
type Port interface {
	Open() error
	Close() error
	IsOpen() bool
	String() string
}

// OutPort is satisfied by drivers.Out.
type OutPort interface {
	Port
	Send(data []byte) error
}

// InPort is satisfied by drivers.In.
type InPort interface {
	Port
	Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (stopFn func(), err error)
}

// OutPortNames lists the hardware outputs in driver order.
func OutPortNames() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// InPortNames lists the MIDI inputs in driver order.
func InPortNames() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// FindOutPort returns the first output whose name contains nameFragment,
// ignoring case.
func FindOutPort(nameFragment string) (drivers.Out, error) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI outputs available")
	}

	lower := strings.ToLower(nameFragment)
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), lower) {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no MIDI output contains %q", nameFragment)
}

// FindInPort returns the first input whose name contains nameFragment,
// ignoring case.
func FindInPort(nameFragment string) (drivers.In, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI inputs available")
	}

	lower := strings.ToLower(nameFragment)
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), lower) {
			return in, nil
		}
	}

	return nil, fmt.Errorf("no MIDI input contains %q", nameFragment)
}

// OpenVirtualIn creates a virtual input port other applications can send to.
func OpenVirtualIn(name string) (drivers.In, error) {
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return nil, errors.New("rtmididrv driver not available")
	}
	in, err := drv.OpenVirtualIn(name)
	if err != nil {
		return nil, fmt.Errorf("create virtual MIDI input %q: %w", name, err)
	}
	return in, nil
}

// CloseDriver releases the MIDI driver. Call it once on shutdown.
func CloseDriver() {
	drivers.Close()
}
